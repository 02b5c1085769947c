package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/GoPolymarket/hookgate/internal/middleware"
	"github.com/GoPolymarket/hookgate/internal/signer"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"
)

var fakeEventTypes = []string{"order.created", "order.paid", "order.refunded", "user.signup", "user.login", "invoice.issued"}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send synthetic events to a gateway",
	Long:  "Generate signed submissions with fake payloads and POST them to /v1/events",
	Example: `  hookctl send --key sk_live_xxx --count 20
  hookctl send --key sk_live_xxx --url http://localhost:8080 --type order.paid`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		base, _ := cmd.Flags().GetString("url")
		count, _ := cmd.Flags().GetInt("count")
		eventType, _ := cmd.Flags().GetString("type")
		rawScheme, _ := cmd.Flags().GetString("scheme")
		seed, _ := cmd.Flags().GetInt64("seed")

		if key == "" {
			return fmt.Errorf("--key is required")
		}
		scheme, err := signer.ParseScheme(rawScheme)
		if err != nil {
			return err
		}
		gofakeit.Seed(seed)

		client := &http.Client{Timeout: 10 * time.Second}
		endpoint := strings.TrimRight(base, "/") + "/v1/events"
		out := cmd.OutOrStdout()

		var accepted int
		for i := 0; i < count; i++ {
			body, err := fakeSubmission(eventType)
			if err != nil {
				return err
			}
			status, resp, err := postSigned(cmd, client, endpoint, scheme, key, body)
			if err != nil {
				return fmt.Errorf("request %d: %w", i+1, err)
			}
			if status == http.StatusOK {
				accepted++
			}
			fmt.Fprintf(out, "%d\t%s\n", status, resp)
			if status == http.StatusTooManyRequests {
				break
			}
		}
		fmt.Fprintf(out, "accepted %d/%d\n", accepted, count)
		return nil
	},
}

// fakeSubmission builds a submission body. An empty eventType picks one at random.
func fakeSubmission(eventType string) ([]byte, error) {
	if eventType == "" {
		eventType = gofakeit.RandomString(fakeEventTypes)
	}
	return json.Marshal(map[string]any{
		"eventType": eventType,
		"eventId":   gofakeit.UUID(),
		"source":    "hookctl",
		"payload": map[string]any{
			"user":   gofakeit.Username(),
			"email":  gofakeit.Email(),
			"ip":     gofakeit.IPv4Address(),
			"amount": gofakeit.Price(1, 500),
			"domain": gofakeit.DomainName(),
		},
	})
}

func postSigned(cmd *cobra.Command, client *http.Client, endpoint string, scheme signer.Scheme, key string, body []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	ts := signer.Timestamp(time.Now())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderAPIKey, key)
	req.Header.Set(middleware.HeaderTimestamp, ts)
	req.Header.Set(middleware.HeaderSignature, signer.Sign(scheme, body, ts, key))

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, strings.TrimSpace(string(raw)), nil
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringP("key", "k", "", "API key")
	sendCmd.Flags().String("url", "http://localhost:8080", "Gateway base URL")
	sendCmd.Flags().IntP("count", "n", 10, "Number of events")
	sendCmd.Flags().StringP("type", "t", "", "Event type (default: random)")
	sendCmd.Flags().String("scheme", string(signer.SchemeConcat), "Signature scheme: concat or hmac")
	sendCmd.Flags().Int64("seed", 0, "Faker seed, 0 for random")
}
