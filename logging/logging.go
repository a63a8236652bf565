// Package logging provides the shared file logger for scan and detection
// runs. Per-image failures are logged here as warnings so they stay visible
// without surfacing in the end result.
package logging

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

var (
	fileLogger *log.Logger
	logFile    *os.File
	mu         sync.Mutex
	isSetup    bool
)

// SetupLogger initializes the logger with the specified log file. Calling it
// again while a log file is open is a no-op.
func SetupLogger(logFilePath string) error {
	mu.Lock()
	defer mu.Unlock()

	if isSetup {
		return nil
	}

	var err error
	logFile, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %v", err)
	}

	fileLogger = log.New(logFile, "", log.LstdFlags)
	fileLogger.Printf("--- imagedup log started at %s ---\n", time.Now().Format(time.RFC3339))

	isSetup = true
	return nil
}

// CloseLogger closes the log file.
func CloseLogger() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		fileLogger.Printf("--- imagedup log closed at %s ---\n", time.Now().Format(time.RFC3339))
		logFile.Close()
		logFile = nil
		fileLogger = nil
		isSetup = false
	}
}

// LogInfo logs an information message.
func LogInfo(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if fileLogger != nil {
		fileLogger.Printf("INFO: "+format, args...)
	} else {
		log.Printf("INFO: "+format, args...)
	}
}

// DebugLog logs a message when file logging is enabled.
func DebugLog(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if fileLogger != nil {
		fileLogger.Printf(format, args...)
	}
}

// LogError logs an error message.
func LogError(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if fileLogger != nil {
		fileLogger.Printf("ERROR: "+format, args...)
	} else {
		log.Printf("ERROR: "+format, args...)
	}
}

// LogWarning logs a warning message.
func LogWarning(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if fileLogger != nil {
		fileLogger.Printf("WARNING: "+format, args...)
	}
}

// LogImageProcessed records the outcome of processing a single image.
func LogImageProcessed(path string, success bool, errMsg string) {
	mu.Lock()
	defer mu.Unlock()

	if fileLogger != nil {
		if success {
			fileLogger.Printf("PROCESSED: %s", path)
		} else {
			fileLogger.Printf("FAILED: %s - %s", path, errMsg)
		}
	}
}
