package config

type JwtConfig struct {
	Secret string
}

func NewJwtConfig() *JwtConfig {
	return &JwtConfig{
		Secret: getString("JWT_SECRET", ""),
	}
}
