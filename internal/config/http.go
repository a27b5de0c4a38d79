package config

type HttpConfig struct {
	Port        int
	ServiceName string
}

func NewHttpConfig() *HttpConfig {
	return &HttpConfig{
		Port:        getInt("HTTP_PORT", 8080),
		ServiceName: getString("SERVICE_NAME", "autograder"),
	}
}
