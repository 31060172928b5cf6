// Package tui renders an operator dashboard over the gateway's local HTTP
// API: connection state, thread previews with unread counts, the active
// notification queue and the pending-applications badge.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/hirelink/realtime-gateway/internal/domain/model"
)

const pollInterval = time.Second

type Dashboard struct {
	logger  *slog.Logger
	baseURL string
	client  *http.Client
}

func New(logger *slog.Logger, baseURL string) *Dashboard {
	return &Dashboard{
		logger:  logger.With(slog.String("component", "tui")),
		baseURL: baseURL,
		client:  &http.Client{Timeout: 3 * time.Second},
	}
}

// Run owns the terminal until ctx is cancelled or the user presses q.
func (d *Dashboard) Run(ctx context.Context) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer ui.Close()

	header := widgets.NewParagraph()
	header.Title = "Connection"
	header.SetRect(0, 0, 60, 3)

	badge := widgets.NewParagraph()
	badge.Title = "Pending applications"
	badge.SetRect(60, 0, 90, 3)

	threads := widgets.NewList()
	threads.Title = "Conversations"
	threads.WrapText = false
	threads.SetRect(0, 3, 60, 20)

	toasts := widgets.NewList()
	toasts.Title = "Notifications"
	toasts.WrapText = false
	toasts.SetRect(60, 3, 120, 20)

	render := func() {
		d.refresh(ctx, header, badge, threads, toasts)
		ui.Render(header, badge, threads, toasts)
	}
	render()

	events := ui.PollEvents()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			render()
		case ev := <-events:
			switch ev.ID {
			case "q", "<C-c>":
				return nil
			case "<Resize>":
				ui.Clear()
				render()
			}
		}
	}
}

func (d *Dashboard) refresh(ctx context.Context, header, badge *widgets.Paragraph, threads, toasts *widgets.List) {
	var connection struct {
		State           string `json:"state"`
		FirstConnection bool   `json:"first_connection"`
	}
	if err := d.fetch(ctx, "/v1/connection", &connection); err != nil {
		header.Text = "gateway unreachable"
		header.TextStyle = ui.NewStyle(ui.ColorRed)
		return
	}
	header.Text = connection.State
	header.TextStyle = ui.NewStyle(stateColor(connection.State))

	var pending struct {
		Total int64 `json:"total"`
	}
	if err := d.fetch(ctx, "/v1/applications/pending", &pending); err == nil {
		badge.Text = fmt.Sprintf("%d", pending.Total)
	}

	var conversations struct {
		Conversations []model.Conversation `json:"conversations"`
	}
	if err := d.fetch(ctx, "/v1/conversations", &conversations); err == nil {
		rows := make([]string, 0, len(conversations.Conversations))
		for _, c := range conversations.Conversations {
			preview := ""
			if c.LastMessage != nil {
				preview = c.LastMessage.Content
			}
			rows = append(rows, fmt.Sprintf("[%2d] %-20s %s", c.UnreadCount, c.Peer.Name, preview))
		}
		threads.Rows = rows
	}

	var notifications struct {
		Notifications []model.Notification `json:"notifications"`
	}
	if err := d.fetch(ctx, "/v1/notifications", &notifications); err == nil {
		rows := make([]string, 0, len(notifications.Notifications))
		for _, n := range notifications.Notifications {
			rows = append(rows, fmt.Sprintf("%-12s %s", n.Kind, n.Title))
		}
		toasts.Rows = rows
	}
}

func (d *Dashboard) fetch(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d on %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func stateColor(state string) ui.Color {
	switch state {
	case "connected":
		return ui.ColorGreen
	case "connecting", "reconnecting":
		return ui.ColorYellow
	default:
		return ui.ColorRed
	}
}
