// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log is the process-wide leveled logger. Call sites use printf-style
// helpers; WithFields attaches structured fields for a single line.
package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Level = logrus.Level

const (
	DebugLevel = logrus.DebugLevel
	InfoLevel  = logrus.InfoLevel
	WarnLevel  = logrus.WarnLevel
	ErrorLevel = logrus.ErrorLevel
)

type Fields = logrus.Fields

var std = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	return l
}

func SetLogLevel(level Level) {
	std.SetLevel(level)
}

func SetOutput(out io.Writer) {
	std.SetOutput(out)
}

// ParseLevel accepts debug, info, warn and error; anything else yields InfoLevel.
func ParseLevel(s string) Level {
	lv, err := logrus.ParseLevel(s)
	if err != nil {
		return InfoLevel
	}
	return lv
}

func Debug(format string, args ...interface{}) {
	std.Debugf(format, args...)
}

func Info(format string, args ...interface{}) {
	std.Infof(format, args...)
}

func Warn(format string, args ...interface{}) {
	std.Warnf(format, args...)
}

func Error(format string, args ...interface{}) {
	std.Errorf(format, args...)
}

func WithFields(fields Fields) *logrus.Entry {
	return std.WithFields(fields)
}
