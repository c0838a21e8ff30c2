package publish

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const watchURLPrefix = "https://www.youtube.com/watch?v="

// YouTubeUploader implements Uploader against the YouTube Data API.
type YouTubeUploader struct {
	service *youtube.Service
}

// NewYouTubeUploader creates an uploader from OAuth credentials.
func NewYouTubeUploader(ctx context.Context, opts ...option.ClientOption) (*YouTubeUploader, error) {
	opts = append(opts, option.WithScopes(youtube.YoutubeUploadScope, youtube.YoutubeReadonlyScope))
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	return &YouTubeUploader{service: service}, nil
}

// Upload creates the video entry, transfers the payload in one resumable
// call, and fetches the canonical descriptor for the published video.
func (u *YouTubeUploader) Upload(ctx context.Context, payload []byte, meta Metadata) (*Result, error) {
	privacy := meta.Privacy
	if privacy == "" {
		privacy = "unlisted"
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        meta.Tags,
		},
		Status: &youtube.VideoStatus{PrivacyStatus: privacy},
	}

	call := u.service.Videos.Insert([]string{"snippet", "status"}, video)
	inserted, err := call.Media(bytes.NewReader(payload), googleapi.ContentType(meta.MIMEType)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to upload video: %w", err)
	}
	if inserted.Id == "" {
		return nil, fmt.Errorf("upload returned no video id")
	}

	result := &Result{
		RemoteID: inserted.Id,
		Link:     watchURLPrefix + inserted.Id,
	}

	// Fetch the canonical record; the constructed watch link is kept if the
	// follow-up read fails, since the upload itself already succeeded.
	listed, err := u.service.Videos.List([]string{"snippet", "status"}).Id(inserted.Id).Context(ctx).Do()
	if err != nil {
		log.Printf("Warning: failed to fetch published video %s: %v", inserted.Id, err)
		return result, nil
	}
	if len(listed.Items) > 0 && listed.Items[0].Id != "" {
		result.RemoteID = listed.Items[0].Id
		result.Link = watchURLPrefix + listed.Items[0].Id
	}

	return result, nil
}
