package openrouter

// Config contains aggregator client configuration.
//   - APIKey: sent as "Authorization: Bearer <key>"
//   - SiteURL / SiteName: optional attribution headers (HTTP-Referer, X-Title)
//   - ListTimeoutMS: bound on GET /models
//   - RequestTimeoutMS: bound on POST /chat/completions
type Config struct {
	APIKey           string `env:"OPENROUTER_API_KEY"`
	BaseURL          string `env:"OPENROUTER_BASE_URL"           envDefault:"https://openrouter.ai/api/v1"`
	SiteURL          string `env:"OPENROUTER_SITE_URL"`
	SiteName         string `env:"OPENROUTER_SITE_NAME"`
	ListTimeoutMS    int    `env:"OPENROUTER_LIST_TIMEOUT_MS"    envDefault:"5000"`
	RequestTimeoutMS int    `env:"OPENROUTER_REQUEST_TIMEOUT_MS" envDefault:"60000"`
}
