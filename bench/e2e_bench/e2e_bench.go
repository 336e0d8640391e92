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
	"time"
)

// benchUser is one synthetic account with its session cookie and server id.
type benchUser struct {
	Username string
	Email    string
	Cookie   *http.Cookie
	ID       int
}

// Notification mirrors the API response from /api/notifications.
type Notification struct {
	ID       int    `json:"id"`
	ActorID  int    `json:"actor_id"`
	MemoryID int    `json:"memory_id"`
	Kind     string `json:"kind"`
}

const benchPassword = "Benchpass1!"

func main() {
	// CLI flags
	var serverAddr string
	var U, F, P, concurrency int
	var pollTimeout int

	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "server base URL")
	flag.IntVar(&U, "users", 50, "number of users to create")
	flag.IntVar(&F, "friends", 5, "mutual friends per user")
	flag.IntVar(&P, "uploads", 50, "number of uploads (at most one per user)")
	flag.IntVar(&concurrency, "c", 20, "concurrency for uploading")
	flag.IntVar(&pollTimeout, "timeout", 10, "seconds to wait for notification delivery")
	flag.Parse()

	if P > U {
		P = U
	}

	ctx := context.Background()
	client := &http.Client{Timeout: 10 * time.Second}

	// --- 1) Create users and log them in ---
	fmt.Printf("Creating %d users...\n", U)
	users := make([]benchUser, U)
	for i := 0; i < U; i++ {
		u, err := setupUser(client, serverAddr, i)
		if err != nil {
			fmt.Printf("create user error: %v\n", err)
			os.Exit(1)
		}
		users[i] = u
	}
	fmt.Println("Users created successfully.")

	// --- 2) Resolve server-side user ids via the user listing ---
	if err := resolveIDs(ctx, client, serverAddr, users); err != nil {
		fmt.Printf("resolve ids error: %v\n", err)
		os.Exit(1)
	}

	// --- 3) Build a mutual-follow graph (F friends per user) ---
	fmt.Printf("Creating mutual follows (~%d per user)...\n", F)
	type pair struct{ a, b int }
	seen := make(map[pair]bool)
	friendMap := make(map[int][]int) // user index -> friend indexes

	for i := range users {
		for j := 1; j <= F && j < U; j++ {
			p := (i + j) % U
			key := pair{min(i, p), max(i, p)}
			if seen[key] {
				continue
			}
			seen[key] = true

			if err := followOnce(ctx, client, serverAddr, users[i], users[p].ID); err != nil {
				fmt.Printf("follow error: %v\n", err)
				os.Exit(1)
			}
			if err := followOnce(ctx, client, serverAddr, users[p], users[i].ID); err != nil {
				fmt.Printf("follow error: %v\n", err)
				os.Exit(1)
			}
			friendMap[i] = append(friendMap[i], p)
			friendMap[p] = append(friendMap[p], i)
		}
	}
	fmt.Println("Follow relationships established.")

	// --- 4) Upload memories concurrently, one per author ---
	fmt.Printf("Uploading %d memories with concurrency %d...\n", P, concurrency)
	type uploadRecord struct {
		AuthorIdx int
		Created   time.Time
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency) // concurrency limiter
	uploadsCh := make(chan uploadRecord, P)

	for i := 0; i < P; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			created := time.Now()
			if err := uploadMemory(client, serverAddr, users[idx]); err != nil {
				fmt.Printf("upload error: %v\n", err)
				return
			}
			uploadsCh <- uploadRecord{AuthorIdx: idx, Created: created}
		}(i)
	}

	wg.Wait()
	close(uploadsCh)

	// --- 5) Verify notification delivery to the author's friends ---
	fmt.Println("Checking notification delivery...")
	var latencies []float64
	var latMu sync.Mutex
	var failCount int64
	var checksWg sync.WaitGroup

	for ur := range uploadsCh {
		authorID := users[ur.AuthorIdx].ID
		for _, fidx := range friendMap[ur.AuthorIdx] {
			checksWg.Add(1)
			go func(ur uploadRecord, friend benchUser) {
				defer checksWg.Done()
				deadline := time.Now().Add(time.Duration(pollTimeout) * time.Second)

				// Poll notifications until the fan-out lands or timeout
				for time.Now().Before(deadline) {
					notifications, err := fetchNotifications(ctx, client, serverAddr, friend)
					if err != nil {
						time.Sleep(200 * time.Millisecond)
						continue
					}

					for _, n := range notifications {
						if n.ActorID == authorID && n.Kind == "memory_uploaded" {
							lat := time.Since(ur.Created).Seconds() * 1000
							latMu.Lock()
							latencies = append(latencies, lat)
							latMu.Unlock()
							return
						}
					}
					time.Sleep(200 * time.Millisecond)
				}

				latMu.Lock()
				failCount++
				latMu.Unlock()
			}(ur, users[fidx])
		}
	}

	checksWg.Wait()

	// --- 6) Compute latency statistics and export to CSV ---
	if len(latencies) == 0 {
		fmt.Println("No successful deliveries recorded.")
	} else {
		trimPercent := 1.0
		meanVal := trimmedMean(latencies, trimPercent)
		p50 := trimmedPercentile(latencies, 50, trimPercent)
		p90 := trimmedPercentile(latencies, 90, trimPercent)
		p99 := trimmedPercentile(latencies, 99, trimPercent)
		fmt.Printf("Delivery stats (ms): count=%d mean=%.2f p50=%.2f p90=%.2f p99=%.2f fails=%d\n",
			len(latencies), meanVal, p50, p90, p99, failCount)

		// Export latencies to CSV
		f, _ := os.Create("e2e_latencies.csv")
		w := csv.NewWriter(f)
		w.Write([]string{"latency_ms"})
		for _, v := range latencies {
			w.Write([]string{fmt.Sprintf("%.3f", v)})
		}
		w.Flush()
		f.Close()
		fmt.Println("Saved e2e_latencies.csv")
	}
}

// setupUser signs up and logs in one synthetic account.
func setupUser(client *http.Client, server string, idx int) (benchUser, error) {
	username := fmt.Sprintf("e2euser%d%d", idx, time.Now().UnixNano())
	email := username + "@bench.local"

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

	for _, c := range resp.Cookies() {
		if c.Name == "session_token" {
			return benchUser{Username: username, Email: email, Cookie: c}, nil
		}
	}
	return benchUser{}, fmt.Errorf("no session cookie in login response")
}

// resolveIDs fills in each user's server-side id using the user listing.
func resolveIDs(ctx context.Context, client *http.Client, server string, users []benchUser) error {
	req, _ := http.NewRequestWithContext(ctx, "GET", server+"/api/users/all", nil)
	req.AddCookie(users[0].Cookie)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var res struct {
		Users []struct {
			ID       int    `json:"id"`
			Username string `json:"username"`
		} `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return err
	}

	byName := make(map[string]int, len(res.Users))
	for _, u := range res.Users {
		byName[u.Username] = u.ID
	}

	for i := range users {
		if id, ok := byName[users[i].Username]; ok {
			users[i].ID = id
			continue
		}
		if i == 0 {
			// the listing excludes the viewer; derive from a neighbor's view
			id, err := idFromOtherView(ctx, client, server, users[1], users[0].Username)
			if err != nil {
				return err
			}
			users[0].ID = id
			continue
		}
		return fmt.Errorf("user %s missing from listing", users[i].Username)
	}
	return nil
}

func idFromOtherView(ctx context.Context, client *http.Client, server string, viewer benchUser, username string) (int, error) {
	req, _ := http.NewRequestWithContext(ctx, "GET", server+"/api/users/all", nil)
	req.AddCookie(viewer.Cookie)
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var res struct {
		Users []struct {
			ID       int    `json:"id"`
			Username string `json:"username"`
		} `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return 0, err
	}
	for _, u := range res.Users {
		if u.Username == username {
			return u.ID, nil
		}
	}
	return 0, fmt.Errorf("user %s missing from listing", username)
}

// followOnce creates a single follow edge from u to targetID.
func followOnce(ctx context.Context, client *http.Client, server string, u benchUser, targetID int) error {
	url := fmt.Sprintf("%s/api/follow/%d", server, targetID)
	req, _ := http.NewRequestWithContext(ctx, "POST", url, nil)
	req.AddCookie(u.Cookie)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("follow status %d", resp.StatusCode)
	}
	return nil
}

// uploadMemory posts one multipart upload as the given user.
func uploadMemory(client *http.Client, server string, u benchUser) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("caption", "e2e bench upload")
	mw.WriteField("emotion", "happy")
	fw, _ := mw.CreateFormFile("image", "bench.jpg")
	fw.Write([]byte("bench-image-bytes"))
	mw.Close()

	req, _ := http.NewRequest("POST", server+"/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(u.Cookie)

	noRedirect := *client
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := noRedirect.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		return fmt.Errorf("upload status %d", resp.StatusCode)
	}
	return nil
}

func fetchNotifications(ctx context.Context, client *http.Client, server string, u benchUser) ([]Notification, error) {
	req, _ := http.NewRequestWithContext(ctx, "GET", server+"/api/notifications", nil)
	req.AddCookie(u.Cookie)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var notifications []Notification
	if err := json.NewDecoder(resp.Body).Decode(&notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// trimmedMean calculates the mean of a dataset excluding extreme values.
func trimmedMean(data []float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sort.Float64s(data)
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = len(data) / 2
	}
	data = data[trim : len(data)-trim]
	var sum float64
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// trimmedPercentile returns a percentile value after trimming extremes.
func trimmedPercentile(data []float64, p float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sort.Float64s(data)
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = len(data) / 2
	}
	data = data[trim : len(data)-trim]
	return percentile(data, p)
}

// percentile calculates the requested percentile using linear interpolation.
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
	d0 := data[f] * (float64(c) - k)
	d1 := data[c] * (k - float64(f))
	return d0 + d1
}
