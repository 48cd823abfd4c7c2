package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"agrismart-bot/api/internal/form"
	"agrismart-bot/api/internal/task"
	"agrismart-bot/api/internal/util"
)

// Telegram serves bot downloads up to 20 MB.
const maxImageBytes = 20 << 20

// acceptImage stores a photo or image document as the disease detection image.
func (r *Router) acceptImage(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID

	var fileID, name, declared string
	if len(msg.Photo) > 0 {
		fileID = msg.Photo[len(msg.Photo)-1].FileID
	} else {
		fileID = msg.Document.FileID
		name = msg.Document.FileName
		declared = msg.Document.MimeType
	}

	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.sendError(cid, fmt.Errorf("get file url: %w", err))
		return
	}
	data, err := r.download(ctx, url)
	if err != nil {
		r.sendError(cid, fmt.Errorf("download image: %w", err))
		return
	}
	if !util.IsImage(data) {
		r.send(cid, "That file is not an image. Please send a JPEG or PNG photo.")
		return
	}

	mime := util.SniffMimeHTTP(data)
	if strings.HasPrefix(declared, "image/") {
		mime = declared
	}
	img := &form.Image{
		Filename: util.FilenameOrDefault(name, data),
		MIME:     mime,
		Data:     data,
	}

	sess := r.Sessions.Get(ctx, cid)
	if _, err := sess.SetImage(task.DiseaseDetection, img); err != nil {
		r.sendError(cid, err)
		return
	}
	r.log().Debug("image accepted",
		zap.Int64("chat_id", cid),
		zap.String("mime", mime),
		zap.Int("bytes", len(data)),
	)
	if sess.Active() != task.DiseaseDetection {
		r.send(cid, "Image saved for Disease Detection. Send /disease to analyze it.")
		return
	}
	r.showForm(ctx, cid)
}

func (r *Router) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}
	return b, nil
}

func (r *Router) httpClient() *http.Client {
	if r.HTTP != nil {
		return r.HTTP
	}
	return &http.Client{Timeout: 60 * time.Second}
}
