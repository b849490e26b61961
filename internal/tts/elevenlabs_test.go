package tts

import (
    "context"
    "encoding/base64"
    "encoding/json"
    "errors"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "nhooyr.io/websocket"
)

func TestElevenLabsOpenRequiresKey(t *testing.T) {
    _, err := NewElevenLabs(ElevenConfig{}).Open(context.Background())
    if !errors.Is(err, ErrConfiguration) {
        t.Fatalf("expected configuration error, got %v", err)
    }
}

func TestElevenLabsStreamsAudio(t *testing.T) {
    var gotKey, gotPath string
    var texts []string
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        gotKey = r.Header.Get("xi-api-key")
        gotPath = r.URL.Path + "?" + r.URL.RawQuery
        c, err := websocket.Accept(w, r, nil)
        if err != nil {
            return
        }
        ctx := r.Context()
        for i := 0; i < 3; i++ {
            _, data, err := c.Read(ctx)
            if err != nil {
                return
            }
            var m map[string]any
            json.Unmarshal(data, &m)
            texts = append(texts, m["text"].(string))
        }
        pcm := base64.StdEncoding.EncodeToString(make([]byte, 1000))
        c.Write(ctx, websocket.MessageText, []byte(`{"audio":"`+pcm+`","isFinal":false}`))
        c.Write(ctx, websocket.MessageText, []byte(`{"audio":null,"isFinal":true}`))
        c.Close(websocket.StatusNormalClosure, "")
    }))
    defer srv.Close()

    el := NewElevenLabs(ElevenConfig{APIKey: "k", BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http"), Stability: 0.4, Similarity: 0.7})
    sess, err := el.Open(context.Background())
    if err != nil {
        t.Fatal(err)
    }
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    task := sess.Start(ctx, "hello there", "Rachel")

    total := 0
    frames := 0
    for b := range task.Chunks() {
        total += len(b)
        frames++
    }
    <-task.Done()
    if task.Err() != nil {
        t.Fatalf("task error: %v", task.Err())
    }
    if total != 1000 || frames != 2 {
        t.Fatalf("got %d bytes in %d frames", total, frames)
    }
    if gotKey != "k" {
        t.Fatalf("api key header %q", gotKey)
    }
    if !strings.Contains(gotPath, "/Rachel/stream-input") || !strings.Contains(gotPath, "output_format=pcm_16000") {
        t.Fatalf("unexpected path %q", gotPath)
    }
    if len(texts) != 3 || texts[1] != "hello there " || texts[2] != "" {
        t.Fatalf("unexpected message sequence %q", texts)
    }
}

func TestElevenLabsDialFailureIsTransport(t *testing.T) {
    el := NewElevenLabs(ElevenConfig{APIKey: "k", BaseURL: "ws://127.0.0.1:1"})
    sess, _ := el.Open(context.Background())
    task := sess.Start(context.Background(), "x", "v")
    for range task.Chunks() {
    }
    <-task.Done()
    if !errors.Is(task.Err(), ErrTransport) {
        t.Fatalf("expected transport error, got %v", task.Err())
    }
}
