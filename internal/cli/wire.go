package cli

import (
	"net/http"
	"time"

	"github.com/ayushhh101/challan-agent/internal/agent"
	"github.com/ayushhh101/challan-agent/internal/ingest"
	"github.com/ayushhh101/challan-agent/internal/netwatch"
	"github.com/ayushhh101/challan-agent/internal/queue"
	"github.com/ayushhh101/challan-agent/internal/rules"
)

// app is the fully wired agent for commands that touch both the queue
// and the network.
type app struct {
	cfg         Config
	queue       *queue.Queue
	watcher     *netwatch.Watcher
	coordinator *agent.Coordinator
}

// newApp wires rules, queue, ingestion client, connectivity watcher and
// coordinator from the effective config.
func newApp(opts *RootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := requireServer(cfg); err != nil {
		return nil, err
	}

	table, err := rules.Load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load rule table", err)
	}

	q, err := openQueue(cfg)
	if err != nil {
		return nil, err
	}

	watcher := netwatch.New(
		&netwatch.HTTPProber{
			URL:    cfg.ProbeURL,
			Client: &http.Client{Timeout: 5 * time.Second},
		},
		netwatch.WithInterval(time.Duration(cfg.ProbeInterval)),
	)

	client := ingest.NewClient(cfg.ServerURL, cfg.Token,
		ingest.WithTimeout(time.Duration(cfg.RequestTimeout)),
	)

	coordinator := agent.New(table, q, client, watcher,
		agent.WithSettleDelay(time.Duration(cfg.SettleDelay)),
	)

	return &app{
		cfg:         cfg,
		queue:       q,
		watcher:     watcher,
		coordinator: coordinator,
	}, nil
}

// Close releases the queue database.
func (a *app) Close() error {
	return a.queue.Close()
}

// openQueue opens the durable queue at the configured path.
func openQueue(cfg Config) (*queue.Queue, error) {
	q, err := queue.Open(cfg.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open queue database", err)
	}
	return q, nil
}
