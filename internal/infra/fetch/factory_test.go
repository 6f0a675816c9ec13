package fetch

import "github.com/regscan/enforcement-ingest/internal/config"

func testFactorySettings() *config.Settings {
	return &config.Settings{
		HSEBaseURL: "http://hse.test",
		EABaseURL:  "http://ea.test",
	}
}
