package client

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"scoutloot/internal/misc"
	"scoutloot/internal/model"
)

type TransportSendResponse struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// TransportSendIntent pushes one notification intent to the external
// transport gateway, which owns delivery (push, email, Telegram) and
// its retries. A send error here is reported, never retried, so a
// flaky gateway cannot turn one intent into repeated alerts.
func (c Client) TransportSendIntent(intent model.NotificationIntent) (TransportSendResponse, error) {
	reqBody, err := json.Marshal(intent)
	if err != nil {
		return TransportSendResponse{}, errors.Wrapf(err, "TransportSendIntent: intent JSON marshalling error, intent: %+v", intent)
	}

	req, err := newRequest(http.MethodPost, c.TransportURL, bytes.NewReader(reqBody))
	if err != nil {
		return TransportSendResponse{}, errors.Wrapf(err, "TransportSendIntent: error creating HTTP request from body: %s", reqBody)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.TransportKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return TransportSendResponse{}, errors.Wrapf(err, "TransportSendIntent: error doing request: %+v", req)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.Logger.Errorf("TransportSendIntent: error closing response body, err: %v", err)
		}
	}()

	sendResp := TransportSendResponse{}
	respBody, err := io.ReadAll(http.MaxBytesReader(nil, resp.Body, 32*1024))
	if err != nil {
		return sendResp, errors.Wrapf(err,
			"TransportSendIntent: error reading transport response body, status: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return sendResp, errors.Errorf("TransportSendIntent: transport status: %s, body:\n%s",
			resp.Status, misc.BytesLimit(respBody, 2000))
	}
	err = json.Unmarshal(respBody, &sendResp)
	return sendResp, errors.Wrapf(err,
		"TransportSendIntent: error unmarshalling transport response body:\n%s", misc.BytesLimit(respBody, 2000))
}
