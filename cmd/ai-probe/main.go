// ai-probe exercises the Glowdesk AI client against a live backend:
// one-shot insight fetches, streaming chat, realtime event watching,
// and a paced request loop for smoke-testing rate limits.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	aiclient "github.com/glowdesk/aiclient"
	"github.com/glowdesk/aiclient/internal/profile"
	"github.com/glowdesk/aiclient/realtime"
)

var (
	configFile string
	salonID    string
)

func newClient() (*aiclient.Client, error) {
	p, err := profile.Load(configFile)
	if err != nil {
		return nil, err
	}
	return aiclient.NewFromProfile(p)
}

func main() {
	root := &cobra.Command{
		Use:           "ai-probe",
		Short:         "Probe the Glowdesk AI insights backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (optional; env GLOWDESK_* also applies)")
	root.PersistentFlags().StringVar(&salonID, "salon", "", "salon id")

	root.AddCommand(newInsightsCmd(), newChatCmd(), newWatchCmd(), newBenchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newInsightsCmd() *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Fetch the insight digest for a salon (twice, to show caching)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			defer c.Close()

			for i := 0; i < 2; i++ {
				start := time.Now()
				report, err := c.Insights(cmd.Context(), salonID, period)
				if err != nil {
					return err
				}
				fmt.Printf("fetch %d took %s (remaining quota %d)\n", i+1, time.Since(start), c.RateRemaining())
				fmt.Println("  summary:", report.Summary)
				for _, h := range report.Highlights {
					fmt.Println("  -", h)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&period, "period", "week", "digest period: day, week or month")
	return cmd
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Stream an assistant reply for a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			defer c.Close()

			chunks, errs := c.ChatStream(cmd.Context(), aiclient.ChatRequest{
				SalonID:  salonID,
				Messages: []aiclient.ChatMessage{{Role: "user", Content: args[0]}},
			})
			for chunk := range chunks {
				fmt.Print(chunk)
			}
			fmt.Println()
			return <-errs
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Subscribe to realtime events until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			defer c.Close()

			rt := c.Realtime()
			rt.Subscribe(realtime.KindConnected, func(realtime.Event) {
				fmt.Println("[connected]")
			})
			rt.Subscribe(realtime.KindDisconnected, func(realtime.Event) {
				fmt.Println("[disconnected]")
			})
			rt.Subscribe(realtime.KindReconnectFailed, func(realtime.Event) {
				fmt.Println("[gave up reconnecting]")
			})
			rt.Subscribe(realtime.KindMessage, func(ev realtime.Event) {
				fmt.Printf("[raw] %s\n", ev.Raw)
			})
			for _, msgType := range []string{"churn_alert", "smart_action", "insight_ready"} {
				t := msgType
				rt.SubscribeMessage(t, func(ev realtime.Event) {
					fmt.Printf("[%s] %s\n", t, ev.Payload)
				})
			}

			if err := rt.Connect(cmd.Context()); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop
			return nil
		},
	}
}

func newBenchCmd() *cobra.Command {
	var (
		total int
		rps   float64
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Issue paced requests to observe client-side limiting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			defer c.Close()

			pacer := rate.NewLimiter(rate.Limit(rps), 1)
			var ok, limited, failed int
			for i := 0; i < total; i++ {
				if err := pacer.Wait(cmd.Context()); err != nil {
					return err
				}
				// Campaign generation is uncached, so every iteration
				// actually reaches the limiter and the network.
				_, err := c.GenerateCampaign(cmd.Context(), aiclient.CampaignRequest{
					SalonID:  salonID,
					Audience: "lapsed",
					Tone:     "friendly",
					Channel:  "sms",
				})
				switch {
				case err == nil:
					ok++
				case aiclient.IsRateLimit(err):
					limited++
					fmt.Printf("request %d throttled, retry in %s\n", i+1, c.RateResetAfter())
				default:
					failed++
					fmt.Printf("request %d failed: %v\n", i+1, err)
				}
			}
			fmt.Printf("done: %d ok, %d rate-limited, %d failed\n", ok, limited, failed)
			return nil
		},
	}
	cmd.Flags().IntVar(&total, "n", 50, "number of requests")
	cmd.Flags().Float64Var(&rps, "rps", 5, "requests per second pacing")
	return cmd
}
