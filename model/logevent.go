package model

import (
	"fmt"
	"strings"
	"time"
)

// LogKind classifies a game log line.
type LogKind int

const (
	LogInfo LogKind = iota
	LogError
	LogSuccess
	LogWarn
	LogSystem
	LogChat
)

var logKindNames = [...]string{
	LogInfo:    "info",
	LogError:   "error",
	LogSuccess: "success",
	LogWarn:    "warn",
	LogSystem:  "system",
	LogChat:    "chat",
}

func (k LogKind) String() string {
	if k < 0 || int(k) >= len(logKindNames) {
		return fmt.Sprintf("LogKind(%d)", int(k))
	}
	return logKindNames[k]
}

func (k LogKind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(logKindNames) {
		return nil, fmt.Errorf("unknown log kind %d", int(k))
	}
	return []byte(logKindNames[k]), nil
}

func (k *LogKind) UnmarshalText(b []byte) error {
	for i, name := range logKindNames {
		if strings.EqualFold(name, string(b)) {
			*k = LogKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown log kind %q", string(b))
}

// LogEvent is a structured line emitted by the simulation for the terminal.
type LogEvent struct {
	ID        string    `json:"id"`
	Kind      LogKind   `json:"type"`
	Message   string    `json:"message"`
	Sender    string    `json:"sender,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Tick      uint64    `json:"tick,omitempty"`
}
