package main

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-voicecode/cmd/ema-voicecode"

var logger = otelslog.NewLogger(scopeName)
