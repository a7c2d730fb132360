package sink

import (
	"github.com/charmbracelet/log"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/engine"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
)

type logSink struct {
	logger *log.Logger
}

// NewLog returns a sink set that logs every directive at debug level.
func NewLog(logger *log.Logger) engine.Sinks {
	if logger == nil {
		logger = log.Default()
	}
	l := logSink{logger: logger.WithPrefix("sink")}
	return engine.Sinks{Viewport: l, Layers: l, Popups: l}
}

func (l logSink) BoundTo(features []*feature.Feature) {
	l.logger.Debug("viewport bound", "features", feature.IDs(features))
}

func (l logSink) CenterDefault() {
	l.logger.Debug("viewport centered")
}

func (l logSink) SetVisible(level feature.Level, visible bool) {
	l.logger.Debug("layer visibility", "level", level, "visible", visible)
}

func (l logSink) Show(f *feature.Feature, pos *engine.Position, kind engine.PopupKind) {
	l.logger.Debug("popup shown", "feature", f, "name", f.DisplayName(), "at", pos, "kind", kind)
}

func (l logSink) Hide() {
	l.logger.Debug("popup hidden")
}
