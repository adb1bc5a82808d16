package services

import (
	"bytes"
	"html/template"
	"sort"
	"strings"
	"time"
)

type TranscriptEmbed struct {
	Title       string
	Description string
}

type TranscriptMessage struct {
	Author    string
	AvatarURL string
	Timestamp time.Time
	Content   string
	Embeds    []TranscriptEmbed
}

var transcriptTmpl = template.Must(template.New("transcript").Funcs(template.FuncMap{
	"lines": func(s string) []string { return strings.Split(s, "\n") },
	"utc":   func(t time.Time) string { return t.UTC().Format("Jan 2, 2006, 3:04:05 PM") },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Ticket Transcript: {{.Channel}}</title>
<style>
body{background-color:#36393f;color:#dcddde;font-family:'Whitney',sans-serif;padding:20px}
.message-group{margin-bottom:20px;display:flex}
.avatar{width:40px;height:40px;border-radius:50%;margin-right:15px}
.message-content{flex-grow:1}
.user-info{font-weight:bold;color:#fff;margin-bottom:4px}
.timestamp{font-size:.75em;color:#72767d;margin-left:8px}
.message-text{line-height:1.4;white-space:pre-wrap;word-wrap:break-word}
.embed{border-left:4px solid #4f545c;padding:10px;background-color:#2f3136;border-radius:4px;margin-top:5px}
</style>
</head>
<body>
<h1>Transcript for Ticket: #{{.Channel}}</h1>
{{range .Messages}}<div class="message-group">
<img src="{{.AvatarURL}}" class="avatar">
<div class="message-content">
<div class="user-info">{{.Author}}<span class="timestamp">{{utc .Timestamp}} UTC</span></div>
{{if .Content}}<div class="message-text">{{.Content}}</div>
{{end}}{{range .Embeds}}<div class="embed"><strong>{{if .Title}}{{.Title}}{{else}}Embed{{end}}</strong><br>{{range $i, $l := lines .Description}}{{if $i}}<br>{{end}}{{$l}}{{end}}</div>
{{end}}</div>
</div>
{{end}}</body>
</html>
`))

// RenderTranscript собирает HTML-стенограмму тикета; сообщения сортируются по времени
func RenderTranscript(channel string, msgs []TranscriptMessage) ([]byte, error) {
	sorted := append([]TranscriptMessage(nil), msgs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	var buf bytes.Buffer
	err := transcriptTmpl.Execute(&buf, struct {
		Channel  string
		Messages []TranscriptMessage
	}{channel, sorted})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func TranscriptFileName(channelID string) string {
	return "transcript-" + channelID + ".html"
}
