package components

import (
	"fmt"
	"time"

	"github.com/allbin/sergw/internal/bridge"
	"github.com/allbin/sergw/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/evertras/bubble-table/table"
)

const (
	columnKeyID     = "id"
	columnKeyRemote = "remote"
	columnKeyUptime = "uptime"
	columnKeyRx     = "rx"
	columnKeyTx     = "tx"
	columnKeyQueued = "queued"
)

// ConnectionsTable lists the clients attached to the bridge
type ConnectionsTable struct {
	table   table.Model
	clients []bridge.ClientInfo
	width   int
	height  int
}

func NewConnectionsTable() *ConnectionsTable {
	ct := &ConnectionsTable{width: 80, height: 6}
	ct.rebuild(time.Now())
	return ct
}

func (ct *ConnectionsTable) SetSize(width, height int) {
	ct.width = width
	ct.height = height
	ct.rebuild(time.Now())
}

// SetClients replaces the rows; now is used for the uptime column
func (ct *ConnectionsTable) SetClients(clients []bridge.ClientInfo, now time.Time) {
	ct.clients = clients
	ct.rebuild(now)
}

func (ct *ConnectionsTable) Len() int { return len(ct.clients) }

func (ct *ConnectionsTable) rebuild(now time.Time) {
	columns := []table.Column{
		table.NewColumn(columnKeyID, "ID", 6),
		table.NewFlexColumn(columnKeyRemote, "Remote", 1),
		table.NewColumn(columnKeyUptime, "Uptime", 10),
		table.NewColumn(columnKeyRx, "RX", 10),
		table.NewColumn(columnKeyTx, "TX", 10),
		table.NewColumn(columnKeyQueued, "Queued", 8),
	}

	rows := make([]table.Row, 0, len(ct.clients))
	for _, c := range ct.clients {
		rows = append(rows, table.NewRow(table.RowData{
			columnKeyID:     fmt.Sprintf("#%d", c.ID),
			columnKeyRemote: c.Addr,
			columnKeyUptime: FormatUptime(now.Sub(c.ConnectedAt)),
			columnKeyRx:     humanize.Bytes(c.Received),
			columnKeyTx:     humanize.Bytes(c.Sent),
			columnKeyQueued: fmt.Sprintf("%d", c.Queued),
		}))
	}

	// header and rounded border take four lines
	pageSize := ct.height - 4
	if pageSize < 1 {
		pageSize = 1
	}

	ct.table = table.New(columns).
		WithRows(rows).
		WithTargetWidth(ct.width).
		WithPageSize(pageSize).
		BorderRounded().
		HeaderStyle(lipgloss.NewStyle().Bold(true).Foreground(styles.Blue)).
		WithBaseStyle(lipgloss.NewStyle().
			Foreground(styles.Text).
			BorderForeground(styles.Surface2).
			Align(lipgloss.Left))
}

func (ct *ConnectionsTable) View() string {
	if len(ct.clients) == 0 {
		return styles.MutedStyle.Render("No clients connected")
	}
	return ct.table.View()
}

// FormatUptime renders a connection age as 45s, 12m03s or 3h04m
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
