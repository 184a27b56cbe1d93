// Command vrobo-record captures a voice sample from the default microphone,
// trims leading and trailing silence, and submits it to a vrobo-recording
// server, printing pipeline progress as it streams back.
package main

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/gorilla/websocket"

	"github.com/amamdouheg90/vrobo-recording/internal/audio"
	"github.com/amamdouheg90/vrobo-recording/internal/events"
)

func main() {
	var (
		serverURL = flag.String("server", "http://localhost:8080", "base URL of the recording server")
		brandID   = flag.Int64("brand", 0, "brand id to attach the recording to")
		filePath  = flag.String("file", "", "submit an existing WAV file instead of recording")
		timeout   = flag.Duration("timeout", 2*time.Minute, "overall request timeout")
	)
	flag.Parse()

	if *brandID <= 0 {
		log.Fatalf("-brand is required and must be positive")
	}

	var (
		sample []byte
		err    error
	)
	if *filePath != "" {
		sample, err = os.ReadFile(*filePath)
		if err != nil {
			log.Fatalf("read %s: %v", *filePath, err)
		}
	} else {
		sample, err = record()
		if err != nil {
			log.Fatalf("recording failed: %v", err)
		}
	}

	trimmed := audio.TrimSilence(sample)
	if len(trimmed) < len(sample) {
		fmt.Printf("trimmed %d bytes of silence\n", len(sample)-len(trimmed))
	}

	clientID, done := followProgress(*serverURL)

	result, err := submit(*serverURL, *brandID, clientID, trimmed, *timeout)
	if err != nil {
		log.Fatalf("submit failed: %v", err)
	}

	if done != nil {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	}

	fmt.Printf("recording stored at %s\n", result.URL)
	if !result.DBUpdateSuccess {
		fmt.Println("warning: brand record was not updated; the URL above is still valid")
	}
}

// record captures mono 16-bit audio from the default input device until the
// user presses Enter.
func record() ([]byte, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	in := make([]int16, 1024)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(audio.CaptureSampleRate), len(in), in)
	if err != nil {
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	defer func() {
		_ = stream.Stop()
		_ = stream.Close()
	}()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("start input stream: %w", err)
	}

	fmt.Println("recording... press Enter to stop")
	stop := make(chan struct{})
	go func() {
		reader := bufio.NewReader(os.Stdin)
		_, _ = reader.ReadString('\n')
		close(stop)
	}()

	var pcm bytes.Buffer
	for {
		select {
		case <-stop:
			return audio.EncodeWAVPCM16LE(pcm.Bytes(), audio.CaptureSampleRate)
		default:
		}
		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("read input stream: %w", err)
		}
		if err := binary.Write(&pcm, binary.LittleEndian, in); err != nil {
			return nil, err
		}
	}
}

// followProgress opens the server's progress socket and prints step events in
// the background. It returns the assigned client id so the upload can be
// unicast, and a channel closed once a completed or error event arrives.
// Progress is best-effort: on any failure the upload proceeds without it.
func followProgress(serverURL string) (string, <-chan struct{}) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", nil
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/api/process-events/ws"

	conn, res, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Printf("progress stream unavailable: %v", err)
		return "", nil
	}
	if res != nil {
		res.Body.Close()
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var hello events.Event
	if err := conn.ReadJSON(&hello); err != nil || !hello.Connected {
		log.Printf("progress stream handshake failed: %v", err)
		conn.Close()
		return "", nil
	}
	_ = conn.SetReadDeadline(time.Time{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer conn.Close()
		for {
			var ev events.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			switch {
			case ev.Heartbeat:
				continue
			case ev.Step == "error":
				fmt.Printf("  [error] %s\n", ev.Error)
			case ev.Step != "":
				fmt.Printf("  [%s]\n", ev.Step)
			}
			if ev.Step == "completed" || ev.Step == "error" {
				return
			}
		}
	}()
	return hello.ClientID, done
}

type cloneResult struct {
	Success         bool   `json:"success"`
	URL             string `json:"url"`
	DBUpdateSuccess bool   `json:"dbUpdateSuccess"`
}

func submit(serverURL string, brandID int64, clientID string, wav []byte, timeout time.Duration) (cloneResult, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("audio", "recording.wav")
	if err != nil {
		return cloneResult{}, err
	}
	if _, err := part.Write(wav); err != nil {
		return cloneResult{}, err
	}
	if err := mw.WriteField("brandId", strconv.FormatInt(brandID, 10)); err != nil {
		return cloneResult{}, err
	}
	if clientID != "" {
		if err := mw.WriteField("clientId", clientID); err != nil {
			return cloneResult{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return cloneResult{}, err
	}

	client := &http.Client{Timeout: timeout}
	res, err := client.Post(strings.TrimRight(serverURL, "/")+"/api/voice-clone", mw.FormDataContentType(), body)
	if err != nil {
		return cloneResult{}, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return cloneResult{}, err
	}
	if res.StatusCode != http.StatusOK {
		return cloneResult{}, fmt.Errorf("server returned %d: %s", res.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result cloneResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return cloneResult{}, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}
