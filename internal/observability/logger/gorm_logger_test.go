package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM coin_balances":                       "SELECT",
		"  insert into coin_transactions (id) values (1)":  "INSERT",
		"WITH x AS (SELECT 1) UPDATE coin_balances SET v=1": "SELECT",
		"":                  "UNKNOWN",
		"VACUUM coin_balances": "UNKNOWN",
	}
	for sql, want := range cases {
		assert.Equal(t, want, operationFromSQL(sql), sql)
	}
}

func TestTableFromSQL(t *testing.T) {
	assert.Equal(t, "coin_balances", tableFromSQL(`UPDATE "coin_balances" SET "version"=$1 WHERE user_id = $2`))
	assert.Equal(t, "coin_transactions", tableFromSQL("INSERT INTO `coin_transactions` (`id`) VALUES (?)"))
	assert.Equal(t, "subscriptions", tableFromSQL(`SELECT * FROM "subscriptions" WHERE status = $1`))
	assert.Equal(t, "", tableFromSQL("SELECT 1"))
}
