package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

type countSample struct {
	Day   string  `json:"day"`
	Value float64 `json:"value"`
}

type observation struct {
	Time    string `json:"time"`
	Summary string `json:"summary"`
	Source  string `json:"source"`
}

// Serves canned vessel counts, weather observations and an RSS feed so the
// engine can run end to end without upstream credentials.
func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/openapi/series", func(w http.ResponseWriter, r *http.Request) {
		startDay, err := time.Parse(time.DateOnly, r.URL.Query().Get("startDay"))
		if err != nil {
			http.Error(w, "startDay must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		endDay, err := time.Parse(time.DateOnly, r.URL.Query().Get("endDay"))
		if err != nil {
			http.Error(w, "endDay must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		if r.Header.Get("sign") == "" {
			writeJSON(w, map[string]any{"success": false, "message": "missing sign"})
			return
		}

		// Steady baseline with a congested final third of the window.
		var samples []countSample
		total := int(endDay.Sub(startDay).Hours()/24) + 1
		for i := 0; i < total; i++ {
			value := 100.0
			if i >= total*2/3 {
				value = 260.0
			}
			samples = append(samples, countSample{
				Day:   startDay.AddDate(0, 0, i).Format(time.DateOnly),
				Value: value,
			})
		}
		writeJSON(w, map[string]any{"success": true, "data": samples})
	})

	mux.HandleFunc("/v1/marine/observations", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Start string `json:"start"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		start, err := time.Parse(time.DateOnly, req.Start)
		if err != nil {
			start = time.Now().UTC().AddDate(0, 0, -7)
		}
		writeJSON(w, map[string]any{
			"observations": []observation{
				{
					Time:    start.AddDate(0, 0, 1).Format(time.RFC3339),
					Summary: "Gale warning: sustained NW winds 40kt, gusts to 55kt",
					Source:  "mock-met",
				},
				{
					Time:    start.AddDate(0, 0, 3).Format(time.RFC3339),
					Summary: "Dense fog, visibility below 0.5nm through morning",
					Source:  "mock-met",
				},
			},
		})
	})

	mux.HandleFunc("/feeds/maritime.xml", func(w http.ResponseWriter, _ *http.Request) {
		now := time.Now().UTC()
		items := strings.Builder{}
		headlines := []string{
			"Strait of Malacca tanker queue grows as arrivals outpace transits",
			"Mandeb transit advisory issued after reported incident",
		}
		for i, headline := range headlines {
			items.WriteString(fmt.Sprintf(`
    <item>
      <title>%s</title>
      <link>http://localhost:9090/news/%d</link>
      <description>%s</description>
      <pubDate>%s</pubDate>
    </item>`, headline, i, headline, now.AddDate(0, 0, -i).Format(time.RFC1123Z)))
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Mock Maritime Wire</title>%s
  </channel>
</rss>`, items.String())
	})

	logger := log.New(log.Writer(), "mock-upstreams ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":9090",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :9090")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}
