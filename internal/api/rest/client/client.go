// Package client implements a client for forwarding notifications to the relay service.
package client

import (
	"context"
	"fmt"

	"github.com/VSFLima/Byte-Capital/internal/config"
	"github.com/VSFLima/Byte-Capital/internal/models/modeldto"
	"github.com/VSFLima/Byte-Capital/internal/models/modelqueue"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Client defines attributes of a struct available to its methods.
type Client struct {
	client       *resty.Client
	serverConfig *config.ServerConfig
	notifyConfig *config.NotifyConfig
	log          *zerolog.Logger
}

// InitClient initializes a resty client.
func InitClient(serverConfig *config.ServerConfig, notifyConfig *config.NotifyConfig, log *zerolog.Logger) *Client {
	relayClient := resty.New()
	log.Info().Msg("notification relay client initialized")
	return &Client{client: relayClient, serverConfig: serverConfig, notifyConfig: notifyConfig, log: log}
}

// SendNotification forwards one queue entry to the relay endpoint.
func (c *Client) SendNotification(ctx context.Context, entry modelqueue.NotificationQueueEntry) error {
	payload := modeldto.Notification{
		Action: entry.Action,
		Details: modeldto.NotificationDetails{
			Nome:     entry.Name,
			Valor:    entry.Amount,
			Email:    entry.Email,
			Status:   entry.Status,
			Mensagem: entry.Message,
		},
		Config: modeldto.NotificationConfig{
			TelegramToken:  c.notifyConfig.TelegramToken,
			TelegramChatID: c.notifyConfig.TelegramChatID,
		},
	}
	response, err := c.client.R().SetContext(ctx).SetHeader("Content-Type", "application/json").SetBody(payload).Post(c.serverConfig.RelayAddress + "/notificacoes/telegram")
	if err != nil {
		c.log.Err(err).Msg(fmt.Sprintf("notification relay failed for action %v", entry.Action))
		return err
	}
	if response.IsError() {
		err = fmt.Errorf("notification relay responded with code %v", response.StatusCode())
		c.log.Error().Msg(err.Error())
		return err
	}
	return nil
}
