package common

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"

	"go.uber.org/zap"
)

var letterRunes = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

func RandStringRunes(n int) string {
	b := make([]rune, n)
	max := big.NewInt(int64(len(letterRunes)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(fmt.Sprintf("common: crypto/rand failed: %v", err))
		}
		b[i] = letterRunes[idx.Int64()]
	}
	return string(b)
}

func ParseReqBody(body io.ReadCloser, v any) error {
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("common: decode request body: %w", err)
	}
	return nil
}

func WriteRespJSON(w http.ResponseWriter, v any) {
	WriteJSON(w, v, http.StatusOK)
}

func WriteJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Errorf("common: can't write json response: %v", err)
	}
}

func WriteMsg(w http.ResponseWriter, msg string, status int) {
	WriteJSON(w, struct {
		Message string `json:"message"`
	}{Message: msg}, status)
}
