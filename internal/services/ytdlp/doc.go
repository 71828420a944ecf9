// Package ytdlp discovers candidate videos by keyword and fetches cover
// images through the yt-dlp CLI.
package ytdlp
