// Package web is the HTTP surface of the worker: the notification
// intake, the single-image endpoint, the dashboard websocket, the
// camera admin API and the operational endpoints.
package web

import (
	"encoding/json"
	"net/http"
)

const (
	statusOK   = 0
	statusFail = 1

	messageSuccess = "操作成功"
	messageFail    = "操作失败"
)

// appResponse is the application envelope. The HTTP status is always
// 200; callers branch on the status field.
type appResponse struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Result  interface{} `json:"result"`
}

func writeJSON(w http.ResponseWriter, body appResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}

func success(w http.ResponseWriter, result interface{}) {
	writeJSON(w, appResponse{Status: statusOK, Message: messageSuccess, Result: result})
}

func fail(w http.ResponseWriter, detail string) {
	writeJSON(w, appResponse{Status: statusFail, Message: messageFail, Result: detail})
}
