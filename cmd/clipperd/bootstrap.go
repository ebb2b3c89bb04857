package main

import (
	"log/slog"

	"clipper/internal/assembly"
	"clipper/internal/audioanalysis"
	"clipper/internal/candidates"
	"clipper/internal/config"
	"clipper/internal/ledger"
	"clipper/internal/queue"
	"clipper/internal/selection"
	"clipper/internal/stage"
	"clipper/internal/subtitles"
)

// stageHandlers builds the pipeline handler set in execution order.
func stageHandlers(cfg *config.Config, store *queue.Store, logger *slog.Logger, decisions *ledger.Store) []stage.Handler {
	return []stage.Handler{
		audioanalysis.NewAnalyzer(cfg, store, logger),
		candidates.NewFetcher(cfg, store, logger, decisions),
		candidates.NewDownloader(cfg, store, logger, decisions),
		selection.NewHandler(cfg, logger),
		assembly.NewAssembler(cfg, store, logger),
		subtitles.NewHandler(cfg, logger),
		assembly.NewComposer(cfg, store, logger),
		assembly.NewTrimmer(cfg, store, logger),
	}
}
