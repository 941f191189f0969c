package messages

// CommandFireAlert is the only command carried on the alert topic.
const CommandFireAlert = "fire_alert"

// AlertMessage is the envelope published on the alert topic.
type AlertMessage struct {
	Command string       `json:"command"`
	Payload AlertPayload `json:"payload"`
}

// AlertPayload mirrors FireReport field by field. All ten fields are always present.
type AlertPayload struct {
	FireType      string `json:"fireType"`
	FireIntensity string `json:"fireIntensity"`
	Verified      bool   `json:"verified"`
	User          string `json:"user"`
	UserID        string `json:"userID"`
	StnID         string `json:"stnID"`
	Latitude      string `json:"latitude"`  // DDM, e.g. 22°34.6020'N
	Longitude     string `json:"longitude"` // DDM, e.g. 88°12.4020'E
	Date          string `json:"date"`
	Time          string `json:"time"`
}
