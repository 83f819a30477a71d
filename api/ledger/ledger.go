package ledger

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"ConciliaMayorista/api"
)

func StartLedgerService(pool *pgxpool.Pool, db *sql.DB) {
	router := mux.NewRouter()

	router.HandleFunc("/ledger/upload", api.RequireAccountKey(db, UploadIncomeWorkbook(pool))).Methods("POST")
	router.HandleFunc("/ledger/incomes", api.RequireAccountKey(db, ListIncomes(pool))).Methods("GET")
	router.HandleFunc("/ledger/summary", api.RequireAccountKey(db, AccountSummary(pool))).Methods("GET")

	log.Println("Ledger Service started on :6144")
	err := http.ListenAndServe(":6144", router)
	if err != nil {
		log.Fatalf("Ledger Service failed: %v", err)
	}
}
