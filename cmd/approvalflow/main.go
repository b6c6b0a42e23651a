package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/approvalhq/approvalflow/internal/config"
	"github.com/approvalhq/approvalflow/internal/repository"
	"github.com/approvalhq/approvalflow/internal/subjects"
	"github.com/approvalhq/approvalflow/pkg/approvalflow"
)

func main() {

	//you may do your own logger setup here or use this default one with slog
	approvalflow.SetupLogger()

	eng, err := approvalflow.Setup()
	if err != nil {
		slog.Error("Engine setup failed", "error", err)
		os.Exit(1)
	}
	defer eng.DB.Close()

	// the demo invoice subject; host applications register their own models
	invoiceStore := repository.NewInvoiceRepository(eng.DB, eng.Repos.Clock)
	subjects.RegisterInvoices(approvalflow.SubjectRegistry, invoiceStore)

	mux := http.NewServeMux()
	approvalflow.RegisterControllers(mux, eng)

	addr := ":" + config.GetSystemSettingString(config.SERVER_WEB_PORT)
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		addr = v
	}
	slog.Info("Starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
