package normalizer

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/apextime/attendance-backend-go/internal/domain/punch"
)

// DirectPushEvent is one verification event from an access controller that
// pushes directly over HTTP, already lifted out of the vendor envelope.
type DirectPushEvent struct {
	SerialNo     string
	UserToken    string
	Name         string
	Time         string
	EventType    string
	SubEventType int
	Raw          string
}

// Sub-event codes that represent a successful verification. Door-open,
// tamper and failed-attempt events share the same callback channel and must
// not become punches.
var verifiedSubEvents = map[int]bool{
	1:  true, // card verified
	38: true, // fingerprint verified
	75: true, // face verified
}

// Verified reports whether the event is a successful verification. Events
// without a sub-type (minimal firmware payloads) are taken at face value.
func (e DirectPushEvent) Verified() bool {
	if e.SubEventType == 0 {
		return true
	}
	return verifiedSubEvents[e.SubEventType]
}

// jsonEnvelope covers the payload shapes seen across firmware versions: the
// fields may sit at the top level, under EventNotificationAlert, or inside a
// nested AccessControllerEvent block.
type jsonEnvelope struct {
	jsonEventFields
	EventNotificationAlert *jsonEventFields `json:"EventNotificationAlert"`
}

type jsonEventFields struct {
	SerialNo              json.Number            `json:"serialNo"`
	EmployeeNo            json.Number            `json:"employeeNo"`
	EmployeeNoString      string                 `json:"employeeNoString"`
	Name                  string                 `json:"name"`
	Time                  string                 `json:"time"`
	DateTime              string                 `json:"dateTime"`
	EventType             string                 `json:"eventType"`
	SubEventType          int                    `json:"subEventType"`
	AccessControllerEvent *jsonAccessControlInfo `json:"AccessControllerEvent"`
}

type jsonAccessControlInfo struct {
	EmployeeNo       json.Number `json:"employeeNo"`
	EmployeeNoString string      `json:"employeeNoString"`
	Name             string      `json:"name"`
	SubEventType     int         `json:"subEventType"`
}

type xmlEnvelope struct {
	XMLName               xml.Name             `xml:"EventNotificationAlert"`
	SerialNo              string               `xml:"serialNo"`
	DateTime              string               `xml:"dateTime"`
	EventType             string               `xml:"eventType"`
	AccessControllerEvent xmlAccessControlInfo `xml:"AccessControllerEvent"`
}

type xmlAccessControlInfo struct {
	EmployeeNo       string `xml:"employeeNo"`
	EmployeeNoString string `xml:"employeeNoString"`
	Name             string `xml:"name"`
	SubEventType     int    `xml:"subEventType"`
}

// ParseDirectPush decodes a direct-push callback body. The content type
// decides the codec; firmware field naming differences are flattened here so
// the rest of the pipeline sees one shape.
func ParseDirectPush(body []byte, contentType string) (DirectPushEvent, error) {
	if strings.Contains(contentType, "xml") {
		return parseDirectPushXML(body)
	}
	return parseDirectPushJSON(body)
}

func parseDirectPushJSON(body []byte) (DirectPushEvent, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return DirectPushEvent{}, fmt.Errorf("%w: %v", punch.ErrMalformedPayload, err)
	}

	fields := env.jsonEventFields
	if env.EventNotificationAlert != nil {
		fields = *env.EventNotificationAlert
	}

	evt := DirectPushEvent{
		SerialNo:     fields.SerialNo.String(),
		Name:         fields.Name,
		EventType:    fields.EventType,
		SubEventType: fields.SubEventType,
		Raw:          string(body),
	}

	evt.UserToken = firstNonEmpty(fields.EmployeeNoString, fields.EmployeeNo.String())
	evt.Time = firstNonEmpty(fields.Time, fields.DateTime)

	if ace := fields.AccessControllerEvent; ace != nil {
		evt.UserToken = firstNonEmpty(evt.UserToken, ace.EmployeeNoString, ace.EmployeeNo.String())
		evt.Name = firstNonEmpty(evt.Name, ace.Name)
		if ace.SubEventType != 0 {
			evt.SubEventType = ace.SubEventType
		}
	}

	return evt, nil
}

func parseDirectPushXML(body []byte) (DirectPushEvent, error) {
	var env xmlEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return DirectPushEvent{}, fmt.Errorf("%w: %v", punch.ErrMalformedPayload, err)
	}

	return DirectPushEvent{
		SerialNo:     env.SerialNo,
		UserToken:    firstNonEmpty(env.AccessControllerEvent.EmployeeNoString, env.AccessControllerEvent.EmployeeNo),
		Name:         env.AccessControllerEvent.Name,
		Time:         env.DateTime,
		EventType:    env.EventType,
		SubEventType: env.AccessControllerEvent.SubEventType,
		Raw:          string(body),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" && v != "0" {
			return v
		}
	}
	return ""
}
