package application

import (
	"github.com/google/wire"

	"github.com/repolens/backend/internal/application/analyzer"
	"github.com/repolens/backend/internal/application/docsynth"
	"github.com/repolens/backend/internal/application/ingestion"
	"github.com/repolens/backend/internal/application/orchestrator"
	"github.com/repolens/backend/internal/application/retrieval"
	"github.com/repolens/backend/internal/application/session"
)

// ProviderSet Application 层总 ProviderSet
var ProviderSet = wire.NewSet(
	ingestion.ProviderSet,
	retrieval.ProviderSet,
	orchestrator.ProviderSet,
	session.ProviderSet,
	analyzer.ProviderSet,
	docsynth.ProviderSet,
)
