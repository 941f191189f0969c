package model

import (
	"github.com/LeonardoBeccarini/firelinx/internal/model/entities"
	"github.com/LeonardoBeccarini/firelinx/internal/model/messages"
)

// Alias per esporre tipi comuni ai servizi

type (
	FireReport    = entities.FireReport
	FireType      = entities.FireType
	FireIntensity = entities.FireIntensity
	Coordinates   = entities.Coordinates
	AlertMessage  = messages.AlertMessage
	AlertPayload  = messages.AlertPayload
)

const (
	CommandFireAlert = messages.CommandFireAlert
	DefaultStation   = entities.DefaultStation
)
