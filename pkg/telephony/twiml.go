package telephony

import (
	"encoding/xml"
	"fmt"
)

type twimlStream struct {
	URL string `xml:"url,attr"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlResponse struct {
	XMLName xml.Name      `xml:"Response"`
	Say     string        `xml:"Say,omitempty"`
	Connect *twimlConnect `xml:"Connect,omitempty"`
}

func renderTwiML(r twimlResponse) ([]byte, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("render twiml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// ConnectStreamTwiML answers an incoming call by connecting its audio
// to the media-stream websocket endpoint on host.
func ConnectStreamTwiML(host string) ([]byte, error) {
	return renderTwiML(twimlResponse{
		Connect: &twimlConnect{
			Stream: twimlStream{URL: fmt.Sprintf("wss://%s/connection", host)},
		},
	})
}

// SayTwiML speaks a short message to the caller, used as the error
// response when the stream cannot be connected.
func SayTwiML(text string) ([]byte, error) {
	return renderTwiML(twimlResponse{Say: text})
}
