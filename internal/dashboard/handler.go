package dashboard

import (
	"encoding/json"
	"log"
	"time"

	"github.com/utlib/eacli/internal/orchestrator"
	"github.com/utlib/eacli/internal/sheets"
	"github.com/utlib/eacli/internal/store"
)

// Handler formats pipeline events as dashboard messages. It implements
// orchestrator.Notifier, bridging between the runner and the WebSocket
// server.
type Handler struct {
	server *Server
	logger *log.Logger
}

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{server: server, logger: logger}
}

var _ orchestrator.Notifier = (*Handler)(nil)

// IngestReport handles export ingestion events
func (h *Handler) IngestReport(source string, report store.Report) {
	h.broadcast(MessageTypeIngestReport, IngestReportData{
		Source:    source,
		New:       report.New,
		Changed:   report.Changed,
		Unchanged: report.Unchanged,
	})
}

// SheetSynced handles worksheet sync completion events
func (h *Handler) SheetSynced(report sheets.SyncReport) {
	data := SheetSyncedData{
		Sheet:    report.Target.Path,
		Category: report.Target.Category,
		State:    string(report.State),
		NewItems: report.NewItems,
		Backup:   report.BackupPath,
	}
	if report.Err != nil {
		data.Error = report.Err.Error()
	}
	h.broadcast(MessageTypeSheetSynced, data)
}

// DriftFound handles worksheet drift events
func (h *Handler) DriftFound(target sheets.Target, drift []sheets.FieldDrift) {
	data := DriftFoundData{Sheet: target.Path}
	for _, d := range drift {
		data.Fields = append(data.Fields, DriftItem{
			MaterialID: d.MaterialID,
			Column:     d.Column,
			SheetValue: d.SheetValue,
			StoreValue: d.StoreValue,
		})
	}
	h.broadcast(MessageTypeDriftFound, data)
}

// RunComplete handles pipeline run completion events
func (h *Handler) RunComplete(summary orchestrator.RunSummary) {
	h.broadcast(MessageTypeRunComplete, RunCompleteData{
		ExportsIngested: summary.ExportsIngested,
		ExportsFailed:   summary.ExportsFailed,
		New:             summary.Ingested.New,
		Changed:         summary.Ingested.Changed,
		Unchanged:       summary.Ingested.Unchanged,
		Sheets:          len(summary.Sheets),
		Duration:        summary.Finished.Sub(summary.Started),
	})
}

func (h *Handler) broadcast(msgType MessageType, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", msgType, err)
		return
	}
	h.server.Broadcast(Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}
