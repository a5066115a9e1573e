package config_test

import (
	"fmt"
	"time"

	"github.com/ajitpratap0/adharvest/pkg/config"
)

// ExampleParseDateRange shows how CLI date bounds are validated.
func ExampleParseDateRange() {
	now := time.Date(2024, 3, 10, 15, 4, 5, 0, time.UTC)

	r, err := config.ParseDateRange("2024-03-01", "", now)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))

	_, err = config.ParseDateRange("01/03/2024", "", now)
	fmt.Println(err)

	// Output:
	// 2024-03-01 2024-03-10
	// validation: wrong start date format "01/03/2024", dates must be YYYY-MM-DD
}

// ExampleHarvestConfig_PoolSize shows an explicit worker count winning over
// the CPU-derived default.
func ExampleHarvestConfig_PoolSize() {
	h := config.HarvestConfig{Workers: 3, ProcsPerCPU: 8}
	fmt.Println(h.PoolSize())

	// Output:
	// 3
}
