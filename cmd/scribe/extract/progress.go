package extract

import (
	"github.com/sirupsen/logrus"

	"github.com/flarebyte/thoth-scribe/internal/pipeline"
)

// progressLogger turns pipeline progress events into info log lines.
func progressLogger(log logrus.FieldLogger) func(pipeline.Event) {
	return func(ev pipeline.Event) {
		switch ev.Kind {
		case pipeline.EventSkipped:
			log.WithFields(logrus.Fields{"skipped": ev.Count, "name": ev.Name}).Info("skipping existing")
		default:
			log.WithField("processed", ev.Count).Info("progress")
		}
	}
}
