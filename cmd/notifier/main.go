package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"time"

	"github.com/VSFLima/Byte-Capital/internal/models/modeldto"
	"github.com/VSFLima/Byte-Capital/internal/models/modelqueue"
	"github.com/VSFLima/Byte-Capital/internal/models/modelstorage"
	"github.com/caarlos0/env/v6"
	"github.com/go-chi/chi"
	"github.com/go-resty/resty/v2"
)

type ServerConfig struct {
	ServerAddress      string `env:"RUN_ADDRESS"`
	TelegramAPIAddress string `env:"TELEGRAM_API_ADDRESS"`
}

func NewServerConfig() (*ServerConfig, error) {
	cfg := ServerConfig{}
	err := env.Parse(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func isFlagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func (c *ServerConfig) ParseFlags() {
	a := flag.String("a", ":7070", "Server address")
	g := flag.String("g", "https://api.telegram.org", "Telegram API address")
	flag.Parse()
	if isFlagPassed("a") || c.ServerAddress == "" {
		c.ServerAddress = *a
	}
	if isFlagPassed("g") || c.TelegramAPIAddress == "" {
		c.TelegramAPIAddress = *g
	}
}

// buildMessage renders a notification into the text relayed to Telegram.
// An unknown action yields an empty message and is acknowledged without relaying.
func buildMessage(notification modeldto.Notification) string {
	details := notification.Details
	switch notification.Action {
	case modelqueue.ActionNewDeposit:
		return fmt.Sprintf("🔔 Novo Pedido de Depósito na Byte Capital!\n\n👤 Utilizador: %s\n💰 Valor: %s\n\n➡️ Ação Necessária: Aceda ao painel de administração para aprovar o depósito e creditar o saldo.", details.Nome, details.Valor)
	case modelqueue.ActionNewWithdrawal:
		estado := "Pendente"
		if details.Status == modelstorage.StatusUnderReview {
			estado = "EM ANÁLISE (CPF diferente)"
		}
		return fmt.Sprintf("🔔 Novo Pedido de Saque na Byte Capital!\n\n👤 Utilizador: %s\n💰 Valor: %s\n🚦 Estado: %s\n\n➡️ Ação Necessária: Aceda ao painel para processar o pagamento.", details.Nome, details.Valor, estado)
	case modelqueue.ActionNewUser:
		return fmt.Sprintf("🎉 Novo Registo na Byte Capital!\n\n👤 Nome: %s\n📩 Email: %s", details.Nome, details.Email)
	case modelqueue.ActionSupport:
		return fmt.Sprintf("💬 Nova Mensagem de Suporte na Byte Capital!\n\n👤 Utilizador: %s\n📝 Mensagem: %s", details.Nome, details.Mensagem)
	default:
		return ""
	}
}

func writeResponse(w http.ResponseWriter, code int, status, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resBody, _ := json.Marshal(modeldto.RelayResponse{Status: status, Message: message})
	w.Write(resBody)
}

// HandleTelegramRelay accepts notification payloads and forwards them to the Telegram Bot API.
func HandleTelegramRelay(cfg *ServerConfig, client *resty.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			log.Println("responding with error 405")
			writeResponse(w, http.StatusMethodNotAllowed, "error", "Método não permitido")
			return
		}
		b, err := ioutil.ReadAll(r.Body)
		if err != nil {
			log.Println("responding with error 400")
			writeResponse(w, http.StatusBadRequest, "error", "Dados inválidos")
			return
		}
		var notification modeldto.Notification
		err = json.Unmarshal(b, &notification)
		if err != nil || notification.Action == "" || notification.Config.TelegramToken == "" || notification.Config.TelegramChatID == "" {
			log.Println("responding with error 400")
			writeResponse(w, http.StatusBadRequest, "error", "Dados inválidos")
			return
		}
		message := buildMessage(notification)
		if message == "" {
			log.Println("no notification required for action", notification.Action)
			writeResponse(w, http.StatusOK, "success", "Nenhuma notificação necessária")
			return
		}
		response, err := client.R().
			SetContext(r.Context()).
			SetQueryParams(map[string]string{
				"chat_id": notification.Config.TelegramChatID,
				"text":    message,
			}).
			Get(cfg.TelegramAPIAddress + "/bot" + notification.Config.TelegramToken + "/sendMessage")
		if err != nil || response.IsError() {
			log.Println("responding with error 500")
			writeResponse(w, http.StatusInternalServerError, "error", "Falha ao enviar notificação")
			return
		}
		log.Println("responding with status 200")
		writeResponse(w, http.StatusOK, "success", "Notificação enviada")
	}
}

func InitServer(cfg *ServerConfig) (server *http.Server, err error) {
	client := resty.New()
	r := chi.NewRouter()
	r.HandleFunc("/notificacoes/telegram", HandleTelegramRelay(cfg, client))
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		IdleTimeout:  60 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return srv, nil
}

func main() {
	cfg, err := NewServerConfig()
	if err != nil {
		log.Println(err)
	}
	cfg.ParseFlags()
	server, err := InitServer(cfg)
	if err != nil {
		log.Println(err)
	}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println(err)
	}
}
