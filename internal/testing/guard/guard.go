package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("DEPOT_TEST_MODE") == "" {
			_ = os.Setenv("DEPOT_TEST_MODE", "1")
		}
	})
}
