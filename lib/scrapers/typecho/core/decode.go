package core

import (
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/go-resty/resty/v2"
)

// DecodeBody returns the response body as text. gzip and deflate are
// decoded transparently by the transport; brotli is advertised in
// Accept-Encoding and must be decoded here.
func (c *Client) DecodeBody(res *resty.Response) string {
	body := res.Body()
	encoding := strings.ToLower(res.Header().Get("Content-Encoding"))
	if encoding != "br" {
		return string(body)
	}

	decoded, err := io.ReadAll(brotli.NewReader(strings.NewReader(string(body))))
	if err != nil {
		// a decode failure means the header lied, fall back to the
		// raw bytes
		return string(body)
	}
	return string(decoded)
}
