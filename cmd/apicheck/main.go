// cmd/apicheck verifies exchange connectivity and credentials with the same
// settings the bot uses: public tickers and books first, then the signed
// account endpoints when credentials are configured, then the latest
// decisions in Redis when REDIS_ADDR is set. Exits non-zero on
// any failure.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"pitrader/config"
	"pitrader/internal/model"
	redisstore "pitrader/internal/store/redis"
	"pitrader/pkg/bitso"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	client := bitso.New(bitso.Config{
		APIKey:    cfg.BitsoAPIKey,
		APISecret: cfg.BitsoAPISecret,
		BaseURL:   cfg.BitsoBaseURL,
		Staging:   cfg.BitsoUseStaging,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Bitso API check  (%s)\n", client.BaseURL())
	fmt.Println(strings.Repeat("=", 50))

	failed := 0
	check := func(name string, fn func() error) {
		fmt.Printf("\n%s\n", name)
		if err := fn(); err != nil {
			failed++
			fmt.Printf("  FAIL %v\n", err)
			hint(err)
			return
		}
		fmt.Println("  OK")
	}

	for _, pair := range cfg.Pairs {
		pair := pair
		check("ticker "+pair, func() error {
			t, err := client.Ticker(ctx, pair)
			if err != nil {
				return err
			}
			quote := strings.ToUpper(model.QuoteAsset(pair))
			fmt.Printf("  last %s %s  bid %s  ask %s  high %s  low %s  volume %s\n",
				t.Last, quote, t.Bid, t.Ask, t.High, t.Low, t.Volume)
			return nil
		})
	}

	check("available books", func() error {
		books, err := client.AvailableBooks(ctx)
		if err != nil {
			return err
		}
		byName := make(map[string]bitso.Book, len(books))
		for _, b := range books {
			byName[b.Book] = b
		}
		fmt.Printf("  %d books\n", len(books))
		for _, pair := range cfg.Pairs {
			b, ok := byName[pair]
			if !ok {
				return fmt.Errorf("configured pair %s is not an available book", pair)
			}
			fmt.Printf("  %-10s min amount %s  min value %s\n", pair, b.MinimumAmount, b.MinimumValue)
		}
		return nil
	})

	if cfg.BitsoAPIKey == "" || cfg.BitsoAPISecret == "" {
		fmt.Println("\nno credentials configured; skipping private endpoints")
	} else {
		check("account status", func() error {
			st, err := client.AccountStatus(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("  status %s\n", st.Status)
			if !st.Active() {
				return errors.New("account is not active; the bot will skip every live tick")
			}
			return nil
		})

		check("balances", func() error {
			balances, err := client.Balances(ctx)
			if err != nil {
				return err
			}
			currencies := make([]string, 0, len(balances))
			for c, b := range balances {
				if b.Total.IsPositive() {
					currencies = append(currencies, c)
				}
			}
			sort.Strings(currencies)
			for _, c := range currencies {
				b := balances[c]
				fmt.Printf("  %-6s available %s  locked %s\n", strings.ToUpper(c), b.Available, b.Locked)
			}
			if len(currencies) == 0 {
				fmt.Println("  all balances are zero")
			}
			return nil
		})

		check("open orders", func() error {
			orders, err := client.OpenOrders(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("  %d open\n", len(orders))
			for _, o := range orders {
				fmt.Printf("  %s %s %s %s @ %s (%s)\n", o.OID, o.Book, o.Side, o.UnfilledAmount, o.Price, o.Status)
			}
			return nil
		})
	}

	if cfg.RedisAddr != "" {
		check("redis "+cfg.RedisAddr, func() error {
			rw, err := redisstore.New(redisstore.WriterConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
			if err != nil {
				return err
			}
			defer rw.Close()
			for _, pair := range cfg.Pairs {
				data, err := rw.LatestDecision(ctx, pair)
				if err != nil {
					return err
				}
				if data == nil {
					fmt.Printf("  %-10s no live decision\n", pair)
					continue
				}
				fmt.Printf("  %-10s %s\n", pair, data)
			}
			return nil
		})
	}

	fmt.Println()
	fmt.Println(strings.Repeat("=", 50))
	if failed > 0 {
		fmt.Printf("%d check(s) failed\n", failed)
		os.Exit(1)
	}
	fmt.Println("all checks passed")
}

func hint(err error) {
	var apiErr *bitso.APIError
	if !errors.As(err, &apiErr) {
		if errors.Is(err, bitso.ErrMissingCredentials) {
			fmt.Println("  set BITSO_API_KEY and BITSO_API_SECRET")
		}
		return
	}
	if apiErr.Status == http.StatusUnauthorized || apiErr.Code == "0201" {
		fmt.Println("  check that the key matches the environment (BITSO_USE_STAGING),")
		fmt.Println("  has no IP restriction and has the needed permissions")
	}
}
