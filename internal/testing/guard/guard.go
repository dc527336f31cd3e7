package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("ONGKIR_TEST_MODE") == "" {
			_ = os.Setenv("ONGKIR_TEST_MODE", "1")
		}
	})
}
