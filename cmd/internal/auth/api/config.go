package authapi

// Config controls auth API behavior and security defaults.
type Config struct {
	// TrustProxy enables X-Forwarded-For / X-Real-IP parsing for client IPs.
	TrustProxy bool

	// MaxBodyBytes caps request bodies before JSON decoding.
	MaxBodyBytes int64

	// ValidationLimits. Zero values fall back to defaults.
	UsernameMinLen int
	UsernameMaxLen int
	PasswordMinLen int
	PasswordMaxLen int
}

// DefaultConfig returns the API defaults: 1 MiB bodies, usernames 3-50,
// passwords 8-256.
func DefaultConfig() Config {
	return Config{
		TrustProxy:     false,
		MaxBodyBytes:   1 << 20,
		UsernameMinLen: 3,
		UsernameMaxLen: 50,
		PasswordMinLen: 8,
		PasswordMaxLen: 256,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = d.MaxBodyBytes
	}
	if c.UsernameMinLen <= 0 {
		c.UsernameMinLen = d.UsernameMinLen
	}
	if c.UsernameMaxLen <= 0 {
		c.UsernameMaxLen = d.UsernameMaxLen
	}
	if c.PasswordMinLen <= 0 {
		c.PasswordMinLen = d.PasswordMinLen
	}
	if c.PasswordMaxLen <= 0 {
		c.PasswordMaxLen = d.PasswordMaxLen
	}
	return c
}
