package billing

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"ConciliaMayorista/api"
)

func StartBillingService(pool *pgxpool.Pool, db *sql.DB) {
	router := mux.NewRouter()

	router.HandleFunc("/billing/run", api.RequireAccountKey(db, RunBilling(pool, db))).Methods("POST")
	router.HandleFunc("/billing/runs", ListRuns(pool)).Methods("GET")
	router.HandleFunc("/billing/runs/{id}/errors", RunErrors(pool)).Methods("GET")

	log.Println("Billing Service started on :6143")
	err := http.ListenAndServe(":6143", router)
	if err != nil {
		log.Fatalf("Billing Service failed: %v", err)
	}
}
