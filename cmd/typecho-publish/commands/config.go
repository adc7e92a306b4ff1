package commands

import (
	"time"

	"typecho-publish/lib/transfer"
)

type GlobalConfig struct {
	Domain   string `json:"domain"`
	Timezone string `json:"timezone"`
}

type SiteConfig struct {
	HomeURL             string `json:"home_url"`
	LoginPage           string `json:"login_page"`
	AdminURL            string `json:"admin_url"`
	WritePostURL        string `json:"write_post_url"`
	ManagePostsURL      string `json:"manage_posts_url"`
	ManageCategoriesURL string `json:"manage_categories_url"`
}

type LoginConfig struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	CookiePrefix string `json:"cookie_prefix"`
}

type ImageConfig struct {
	ProcessedImgRoot string `json:"processed_img_root"`
	ServerImgURL     string `json:"server_img_url"`
	SpaceReplaceChar string `json:"space_replace_char"`
}

// delays are in seconds, fractions allowed
type RequestConfig struct {
	UserAgent  string  `json:"user_agent"`
	MinDelay   float64 `json:"min_delay"`
	MaxDelay   float64 `json:"max_delay"`
	BatchDelay float64 `json:"batch_delay"`
}

type CategoryConfig struct {
	DefaultCategoryID int `json:"default_category_id"`
}

type Config struct {
	Global   GlobalConfig    `json:"global"`
	Site     SiteConfig      `json:"site"`
	Login    LoginConfig     `json:"login"`
	Image    ImageConfig     `json:"image"`
	Ftp      transfer.Config `json:"ftp"`
	Request  RequestConfig   `json:"request"`
	Category CategoryConfig  `json:"category"`
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
