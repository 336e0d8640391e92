package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// benchUser holds the credentials and session cookie of one synthetic account.
type benchUser struct {
	Email    string
	Cookie   *http.Cookie
	MemoryID int
}

// CommentReq represents the JSON payload for posting a comment
type CommentReq struct {
	Text string `json:"text"`
}

const benchPassword = "Benchpass1!"

func main() {
	// --- Command-line flags ---
	var server string
	var duration int
	var concurrency int
	var csvFile string
	var trimPercent float64

	flag.StringVar(&server, "server", "http://localhost:8080", "server base URL")
	flag.IntVar(&duration, "duration", 30, "duration in seconds")
	flag.IntVar(&concurrency, "c", 50, "number of concurrent goroutines / users")
	flag.StringVar(&csvFile, "csv", "latencies.csv", "CSV file to save latencies")
	flag.Float64Var(&trimPercent, "trim", 1.0, "percent of latency to trim from top and bottom for trimmed mean")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	// --- Create users, log them in and give each a memory to comment on ---
	fmt.Printf("Creating %d users...\n", concurrency)
	users := make([]benchUser, concurrency)
	for i := 0; i < concurrency; i++ {
		u, err := setupUser(client, server, i)
		if err != nil {
			panic(fmt.Sprintf("failed to set up user %d: %v", i, err))
		}
		users[i] = u
	}
	fmt.Println("Users created.")

	// --- Prepare concurrency test ---
	stopTime := time.Now().Add(time.Duration(duration) * time.Second)
	var wg sync.WaitGroup

	// Atomic counters for thread-safe tracking
	var requests int64
	var successes int64
	var errors4xx int64
	var errors5xx int64

	latencySlices := make([][]float64, concurrency) // each goroutine records latencies

	// --- Start concurrent goroutines for load test ---
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			user := users[idx]
			var localLatencies []float64

			// Keep posting comments until the test duration ends
			for time.Now().Before(stopTime) {
				start := time.Now()
				body := CommentReq{Text: fmt.Sprintf("load test comment %d", time.Now().UnixNano())}
				b, _ := json.Marshal(body)

				url := fmt.Sprintf("%s/api/comment/%d", server, user.MemoryID)
				req, _ := http.NewRequestWithContext(context.Background(), "POST", url, bytes.NewReader(b))
				req.Header.Set("Content-Type", "application/json")
				req.AddCookie(user.Cookie)

				resp, err := client.Do(req)
				lat := time.Since(start).Seconds() * 1000 // latency in ms
				localLatencies = append(localLatencies, lat)
				atomic.AddInt64(&requests, 1)

				if err != nil {
					fmt.Printf("Request error: %v\n", err)
					continue
				}

				// Count success/failure by status code
				if resp.StatusCode >= 200 && resp.StatusCode < 300 {
					atomic.AddInt64(&successes, 1)
				} else if resp.StatusCode >= 400 && resp.StatusCode < 500 {
					atomic.AddInt64(&errors4xx, 1)
				} else if resp.StatusCode >= 500 {
					atomic.AddInt64(&errors5xx, 1)
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}

			latencySlices[idx] = localLatencies
		}(i)
	}

	wg.Wait()

	// --- Merge all latencies ---
	var allLatencies []float64
	for _, slice := range latencySlices {
		allLatencies = append(allLatencies, slice...)
	}
	sort.Float64s(allLatencies)

	// --- Compute statistics ---
	trimmedMeanVal := trimmedMean(allLatencies, trimPercent)
	p50 := percentile(allLatencies, 50)
	p90 := percentile(allLatencies, 90)
	p99 := percentile(allLatencies, 99)

	fmt.Printf("Requests: %d  Successes: %d  4xx: %d  5xx: %d\n", requests, successes, errors4xx, errors5xx)
	fmt.Printf("Latency (ms): trimmed_mean=%.2f p50=%.2f p90=%.2f p99=%.2f\n", trimmedMeanVal, p50, p90, p99)

	// --- Save latencies to CSV ---
	f, err := os.Create(csvFile)
	if err != nil {
		fmt.Printf("Failed to create CSV file: %v\n", err)
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	w.Write([]string{"latency_ms"})
	for _, d := range allLatencies {
		w.Write([]string{fmt.Sprintf("%.3f", d)})
	}
	fmt.Printf("Saved latencies to %s\n", csvFile)
}

// setupUser signs up an account, logs in for a session cookie and uploads a
// single memory whose id the load loop comments on.
func setupUser(client *http.Client, server string, idx int) (benchUser, error) {
	username := fmt.Sprintf("loaduser%d%d", idx, time.Now().UnixNano())
	email := username + "@bench.local"

	// signup: multipart form without a profile image
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("username", username)
	mw.WriteField("email", email)
	mw.WriteField("password", benchPassword)
	mw.Close()

	resp, err := client.Post(server+"/signup", mw.FormDataContentType(), &buf)
	if err != nil {
		return benchUser{}, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return benchUser{}, fmt.Errorf("signup status %d", resp.StatusCode)
	}

	// login: grab the session cookie
	lb, _ := json.Marshal(map[string]string{"email": email, "password": benchPassword})
	resp, err = client.Post(server+"/login", "application/json", bytes.NewReader(lb))
	if err != nil {
		return benchUser{}, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return benchUser{}, fmt.Errorf("login status %d", resp.StatusCode)
	}
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "session_token" {
			cookie = c
		}
	}
	if cookie == nil {
		return benchUser{}, fmt.Errorf("no session cookie in login response")
	}

	// upload one memory to comment on
	buf.Reset()
	mw = multipart.NewWriter(&buf)
	mw.WriteField("caption", "load target")
	mw.WriteField("emotion", "calm")
	fw, _ := mw.CreateFormFile("image", "bench.jpg")
	fw.Write([]byte("bench-image-bytes"))
	mw.Close()

	req, _ := http.NewRequest("POST", server+"/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	noRedirect := *client
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err = noRedirect.Do(req)
	if err != nil {
		return benchUser{}, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		return benchUser{}, fmt.Errorf("upload status %d", resp.StatusCode)
	}

	// resolve the new memory id
	req, _ = http.NewRequest("GET", server+"/api/my-memories", nil)
	req.AddCookie(cookie)
	resp, err = client.Do(req)
	if err != nil {
		return benchUser{}, err
	}
	var memories []struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&memories); err != nil {
		resp.Body.Close()
		return benchUser{}, err
	}
	resp.Body.Close()
	if len(memories) == 0 {
		return benchUser{}, fmt.Errorf("no memories after upload")
	}

	return benchUser{Email: email, Cookie: cookie, MemoryID: memories[0].ID}, nil
}

// trimmedMean calculates mean latency after trimming top/bottom trimPercent values
func trimmedMean(data []float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = len(data) / 2
	}
	trimmed := data[trim : len(data)-trim]
	var sum float64
	for _, v := range trimmed {
		sum += v
	}
	return sum / float64(len(trimmed))
}

// percentile calculates the p-th percentile from sorted data
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	k := (p / 100.0) * float64(len(data)-1)
	f := int(k)
	c := f + 1
	if c >= len(data) {
		return data[len(data)-1]
	}
	d0 := data[f]*(float64(c)-k) + data[c]*(k-float64(f))
	return d0
}
