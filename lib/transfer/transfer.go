// Package transfer is the file-transfer capability the publish pipeline
// uploads image assets through. The pipeline only sees the Client
// interface; tests substitute an in-memory fake.
package transfer

import (
	"context"
	"io"
)

type Client interface {
	CurrentDir() (string, error)
	ChangeDir(path string) error
	MakeDir(path string) error
	NameList(path string) ([]string, error)
	Store(name string, r io.Reader) error
	Delete(name string) error
	RemoveDir(path string) error
	Quit() error
}

// DialFunc opens a fresh connection. The pipeline dials once per
// document's upload step and quits at the end of the step, it never
// holds a connection across documents.
type DialFunc func(ctx context.Context) (Client, error)

type Config struct {
	Host     string  `json:"host"`
	Port     int     `json:"port"`
	Username string  `json:"user"`
	Password string  `json:"password"`
	BasePath string  `json:"base_path"`
	Timeout  float64 `json:"timeout"`
	Passive  bool    `json:"passive"`
}
