package redisstream

// Settings holds Redis Streams transport configuration for Watermill.
type Settings struct {
	Enabled  bool
	Addr     string
	DB       int
	Group    string
	Consumer string
}

func DefaultSettings() Settings {
	return Settings{
		Addr:     "localhost:6379",
		Group:    "coach-chat",
		Consumer: "gateway-1",
	}
}
