package config

type RedisConfig struct {
	DB       int
	Url      string
	Password string
}

func NewRedisConfig() *RedisConfig {
	return &RedisConfig{
		DB:       getInt("REDIS_DB", 0),
		Url:      getString("REDIS_ADDR", "localhost:6379"),
		Password: getString("REDIS_PASSWORD", ""),
	}
}
