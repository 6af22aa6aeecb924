package utils

import (
	"fmt"

	"github.com/fatih/color"
)

// Debug toggles LogDebug output. Set from config at startup.
var Debug bool

// LogInfo prints an informational line in green.
func LogInfo(format string, v ...interface{}) {
	color.Green("[INFO] %s", fmt.Sprintf(format, v...))
}

// LogWarn prints a recoverable problem in yellow.
func LogWarn(format string, v ...interface{}) {
	color.Yellow("[WARN] %s", fmt.Sprintf(format, v...))
}

// LogError prints a failure in red.
func LogError(format string, v ...interface{}) {
	color.Red("[ERROR] %s", fmt.Sprintf(format, v...))
}

func LogDebug(format string, v ...interface{}) {
	if !Debug {
		return
	}
	color.Cyan("[DEBUG] %s", fmt.Sprintf(format, v...))
}
