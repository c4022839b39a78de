package main

import (
	"github.com/codewandler/esc-go/core/serial"
)

type (
	EmailChanged struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
	}
	NameChanged struct {
		UserID string `xml:"user_id,attr"`
		Name   string `xml:"name"`
	}
	RunMeta struct {
		RunID string `json:"run_id"`
		Seq   int    `json:"seq"`
	}
)

func (EmailChanged) EventType() string { return "UserEmailChanged" }
func (NameChanged) EventType() string  { return "UserNameChanged" }
func (RunMeta) EventType() string      { return "LoadtestMeta" }

func registry() *serial.Registry {
	b := serial.NewRegistryBuilder()
	serial.RegisterJSON[EmailChanged](b)
	serial.RegisterXML[NameChanged](b)
	serial.RegisterJSON[RunMeta](b)
	return b.Build()
}
