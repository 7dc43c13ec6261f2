package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hxann/radiotruyen/internal/tts"
)

// The Edge read-aloud endpoint streams synthesized audio over a websocket:
// one JSON config message and one SSML message out, a sequence of binary
// audio frames back, terminated by a turn.end text message.
const (
	edgeEndpoint     = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1"
	trustedClientKey = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	outputFormat     = "audio-24khz-48kbitrate-mono-mp3"

	audioPathHeader = "Path:audio"
	turnEndMarker   = "Path:turn.end"
)

type EdgeClient struct {
	params Params
	dialer *websocket.Dialer
}

func NewEdgeClient(params Params) *EdgeClient {
	return &EdgeClient{
		params: params,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Synthesize opens a fresh websocket per request and streams the resulting
// audio frames on the returned channel. The channel is closed once the
// service signals the end of the turn; a failure is delivered as a final
// chunk with Err set. The caller's context cancels the connection.
func (c *EdgeClient) Synthesize(ctx context.Context, text string) (<-chan tts.Chunk, error) {
	connectionID := strings.ReplaceAll(uuid.New().String(), "-", "")
	url := fmt.Sprintf("%s?TrustedClientToken=%s&ConnectionId=%s", edgeEndpoint, trustedClientKey, connectionID)

	header := http.Header{}
	header.Set("Origin", "chrome-extension://jdiccldimpdaibmpdkjnbmckianbfold")
	header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	conn, resp, err := c.dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("could not connect to synthesis service (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("could not connect to synthesis service: %w", err)
	}

	if err := c.sendRequest(conn, connectionID, text); err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not send synthesis request: %w", err)
	}

	out := make(chan tts.Chunk, 10)

	// Closing the connection is the only way to unblock a pending read.
	connDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-connDone:
		}
		conn.Close()
	}()

	go func() {
		defer close(out)
		defer close(connDone)

		// Sends must not block forever: a caller that stopped receiving
		// after cancellation would otherwise leak this goroutine.
		send := func(chunk tts.Chunk) bool {
			select {
			case out <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					send(tts.Chunk{Err: ctx.Err()})
					return
				}
				send(tts.Chunk{Err: fmt.Errorf("synthesis connection failed: %w", err)})
				return
			}

			switch messageType {
			case websocket.BinaryMessage:
				payload, ok := audioPayload(data)
				if ok && len(payload) > 0 {
					if !send(tts.Chunk{Data: payload}) {
						return
					}
				}
			case websocket.TextMessage:
				if strings.Contains(string(data), turnEndMarker) {
					return
				}
			}
		}
	}()

	return out, nil
}

func (c *EdgeClient) sendRequest(conn *websocket.Conn, requestID, text string) error {
	timestamp := time.Now().UTC().Format("Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")

	config := fmt.Sprintf(
		"X-Timestamp:%s\r\n"+
			"Content-Type:application/json; charset=utf-8\r\n"+
			"Path:speech.config\r\n\r\n"+
			`{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},"outputFormat":"%s"}}}}`,
		timestamp, outputFormat,
	)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(config)); err != nil {
		return err
	}

	ssml := fmt.Sprintf(
		"X-RequestId:%s\r\n"+
			"Content-Type:application/ssml+xml\r\n"+
			"X-Timestamp:%s\r\n"+
			"Path:ssml\r\n\r\n"+
			"<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>"+
			"<voice name='%s'><prosody pitch='+0Hz' rate='%s' volume='%s'>%s</prosody></voice></speak>",
		requestID, timestamp, c.params.Voice(), c.params.Rate(), c.params.Volume(), escapeXML(text),
	)
	return conn.WriteMessage(websocket.TextMessage, []byte(ssml))
}

// audioPayload extracts the audio bytes from a binary service message:
// a big-endian header length, the header itself, then the payload.
func audioPayload(data []byte) ([]byte, bool) {
	if len(data) < 2 {
		return nil, false
	}
	headerLength := int(binary.BigEndian.Uint16(data[:2]))
	if len(data) < 2+headerLength {
		return nil, false
	}
	header := data[2 : 2+headerLength]
	if !bytes.Contains(header, []byte(audioPathHeader)) {
		return nil, false
	}
	return data[2+headerLength:], true
}

func escapeXML(text string) string {
	var buf bytes.Buffer
	// EscapeText only fails on a failing writer; bytes.Buffer never does.
	_ = xml.EscapeText(&buf, []byte(text))
	return buf.String()
}

var _ tts.Synthesizer = (*EdgeClient)(nil)
