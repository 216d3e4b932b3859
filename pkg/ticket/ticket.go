package ticket

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/www"
)

// Package ticket pulls dental image attachments out of a support ticket
// system, so they can be preprocessed and classified before entering the
// annotation queue.

type Client struct {
	log     logs.Log
	baseURL string
	email   string
	token   string
	client  *http.Client
}

// Attachment is one image attached to a ticket comment.
type Attachment struct {
	FileName    string `json:"file_name"`
	ContentURL  string `json:"content_url"`
	ContentType string `json:"content_type"`
}

func NewClient(log logs.Log, baseURL, email, token string) *Client {
	return &Client{
		log:     log,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		email:   email,
		token:   token,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) get(url string) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	// Token auth convention of the ticket API: user is "email/token".
	req.SetBasicAuth(c.email+"/token", c.token)
	resp, err := c.client.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ticket API request %v failed: %v", url, www.FailedRequestSummaryEx(resp, err, 200))
	}
	return resp, nil
}

// TicketIDs lists the tickets in a view.
func (c *Client) TicketIDs(viewID int64) ([]int64, error) {
	resp, err := c.get(fmt.Sprintf("%v/api/v2/views/%v/tickets.json", c.baseURL, viewID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	parsed := struct {
		Tickets []struct {
			ID int64 `json:"id"`
		} `json:"tickets"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("invalid ticket list: %w", err)
	}
	ids := make([]int64, 0, len(parsed.Tickets))
	for _, t := range parsed.Tickets {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

// ImageAttachments lists the image attachments on all comments of a ticket.
func (c *Client) ImageAttachments(ticketID int64) ([]Attachment, error) {
	resp, err := c.get(fmt.Sprintf("%v/api/v2/tickets/%v/comments.json", c.baseURL, ticketID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	parsed := struct {
		Comments []struct {
			Attachments []Attachment `json:"attachments"`
		} `json:"comments"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("invalid comment list for ticket %v: %w", ticketID, err)
	}
	images := []Attachment{}
	for _, comment := range parsed.Comments {
		for _, att := range comment.Attachments {
			if strings.HasPrefix(att.ContentType, "image/") {
				images = append(images, att)
			}
		}
	}
	return images, nil
}

// RetrieveTicketImages downloads every image attachment of a ticket into
// <root>/ticket_<id>/ and returns the saved file paths. Individual download
// failures are logged and skipped; the ticket is not abandoned.
func (c *Client) RetrieveTicketImages(ticketID int64, root string) ([]string, error) {
	attachments, err := c.ImageAttachments(ticketID)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(root, fmt.Sprintf("ticket_%v", ticketID))
	if err := os.MkdirAll(dir, 0770); err != nil {
		return nil, err
	}
	saved := []string{}
	for _, att := range attachments {
		path := filepath.Join(dir, filepath.Base(att.FileName))
		if err := c.download(att.ContentURL, path); err != nil {
			c.log.Warnf("Failed to download %v from ticket %v: %v", att.FileName, ticketID, err)
			continue
		}
		saved = append(saved, path)
	}
	c.log.Infof("Ticket %v: saved %v of %v image attachments", ticketID, len(saved), len(attachments))
	return saved, nil
}

func (c *Client) download(url, path string) error {
	resp, err := c.get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}
