package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Parley server URL")
	title := flag.String("title", "", "meeting title")
	date := flag.String("date", "", "preferred date (YYYY-MM-DD)")
	at := flag.String("at", "", "preferred time (HH:MM)")
	duration := flag.Int("duration", 60, "duration in minutes")
	participants := flag.String("participants", "", "comma-separated party ids (default: all)")
	negotiate := flag.Bool("negotiate", false, "run an agent negotiation instead of a slot search")
	schedule := flag.Int("schedule", -1, "commit the slot at this index after the search")
	flag.Parse()

	switch flag.Arg(0) {
	case "profiles":
		dump(*server + "/api/profiles")
		return
	case "parties":
		dump(*server + "/api/parties")
		return
	case "meetings":
		dump(*server + "/api/meetings")
		return
	case "calendar":
		if flag.Arg(1) == "" {
			fail("usage: parleyctl calendar <party-id>")
		}
		dump(*server + "/api/calendar/" + flag.Arg(1))
		return
	}

	if *title == "" || *date == "" || *at == "" {
		fail("usage: parleyctl -title T -date YYYY-MM-DD -at HH:MM [-duration N] [-participants a,b] [-negotiate | -schedule N]\n       parleyctl profiles|parties|meetings|calendar <id>")
	}

	body := map[string]interface{}{
		"title":            *title,
		"preferred_date":   *date,
		"preferred_time":   *at,
		"duration_minutes": *duration,
	}
	if *participants != "" {
		body["participants"] = strings.Split(*participants, ",")
	}

	switch {
	case *negotiate:
		runNegotiation(*server, body)
	case *schedule >= 0:
		post(fmt.Sprintf("%s/api/schedule?slot_index=%d", *server, *schedule), body, printSearch)
	default:
		post(*server+"/api/negotiate", body, printSearch)
	}
}

type slot struct {
	QualityScore  int    `json:"quality_score"`
	DayOfWeek     string `json:"day_of_week"`
	DateFormatted string `json:"date_formatted"`
	TimeFormatted string `json:"time_formatted"`
	DurationMin   int    `json:"duration_minutes"`
}

type searchResult struct {
	Success      bool   `json:"success"`
	Slots        []slot `json:"available_slots"`
	SelectedSlot *slot  `json:"selected_slot"`
	MeetingID    string `json:"meeting_id"`
	Message      string `json:"message"`
	Error        string `json:"error"`
}

func printSearch(data []byte) {
	var res searchResult
	if err := json.Unmarshal(data, &res); err != nil {
		fail("bad response: %v", err)
	}
	if res.Error != "" {
		fail("server: %s", res.Error)
	}
	fmt.Println(res.Message)
	for i, s := range res.Slots {
		fmt.Printf("  %d. %s %s %s (%d min, score %d)\n",
			i, s.DayOfWeek, s.DateFormatted, s.TimeFormatted, s.DurationMin, s.QualityScore)
	}
	if res.SelectedSlot != nil {
		fmt.Printf("Scheduled: %s %s %s (meeting %s)\n",
			res.SelectedSlot.DayOfWeek, res.SelectedSlot.DateFormatted,
			res.SelectedSlot.TimeFormatted, res.MeetingID)
	}
}

type traceStep struct {
	Round        int     `json:"round"`
	PartyID      string  `json:"party_id"`
	Action       string  `json:"action"`
	ProposedTime string  `json:"proposed_time"`
	Reason       string  `json:"reason"`
	Confidence   float64 `json:"confidence"`
}

type negotiationResult struct {
	Outcome    string      `json:"outcome"`
	FinalStart string      `json:"final_start"`
	Rounds     int         `json:"rounds"`
	Reason     string      `json:"reason"`
	MeetingID  string      `json:"meeting_id"`
	Trace      []traceStep `json:"trace"`
	Error      string      `json:"error"`
}

func runNegotiation(server string, body map[string]interface{}) {
	post(server+"/api/negotiations", body, func(data []byte) {
		var res negotiationResult
		if err := json.Unmarshal(data, &res); err != nil {
			fail("bad response: %v", err)
		}
		if res.Error != "" {
			fail("server: %s", res.Error)
		}
		fmt.Println("Negotiation transcript:")
		for _, s := range res.Trace {
			line := fmt.Sprintf("  [round %d] %s %s", s.Round, s.PartyID, s.Action)
			if s.ProposedTime != "" && !strings.HasPrefix(s.ProposedTime, "0001-") {
				line += " " + s.ProposedTime
			}
			if s.Reason != "" {
				line += " — " + s.Reason
			}
			if s.Confidence > 0 {
				line += fmt.Sprintf(" (confidence %.2f)", s.Confidence)
			}
			fmt.Println(line)
		}
		fmt.Printf("Outcome: %s after %d round(s)\n", res.Outcome, res.Rounds)
		if res.FinalStart != "" {
			fmt.Printf("Agreed time: %s\n", res.FinalStart)
		}
		if res.MeetingID != "" {
			fmt.Printf("Meeting: %s\n", res.MeetingID)
		}
		if res.Reason != "" {
			fmt.Printf("Reason: %s\n", res.Reason)
		}
	})
}

func post(url string, body map[string]interface{}, handle func([]byte)) {
	b, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		fail("request failed: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 500 {
		fail("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	handle(data)
}

func dump(url string) {
	resp, err := http.Get(url)
	if err != nil {
		fail("request failed: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		fmt.Println(pretty.String())
		return
	}
	fmt.Println(string(data))
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
