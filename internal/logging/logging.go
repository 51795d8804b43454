// Package logging はlogrusの標準ロガーを設定します。
package logging

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Setup はログレベルとフォーマットを設定します。
// debug が true の場合、level より優先して DebugLevel になります。
func Setup(level, format string, debug bool) {
	log.SetOutput(os.Stdout)
	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("invalid log level %q, using info", level)
		lvl = log.InfoLevel
	}
	if debug {
		lvl = log.DebugLevel
	}
	log.SetLevel(lvl)
}
