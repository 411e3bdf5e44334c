package calf

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const accountListHTML = `
<html><body>
<span>Cuentas de la persona</span>
<table>
  <tr><th>Cuenta</th><th>Servicio</th><th>Domicilio</th><th>Estado</th></tr>
  <tr><td>10234</td><td>Energía</td><td>SAN MARTIN 450</td><td>CONECTADO</td></tr>
  <tr><td>20987</td><td>Agua</td><td>BELGRANO 1200 DTO 2</td><td>SUSPENDIDO</td></tr>
</table>
</body></html>`

func TestParseAccountList(t *testing.T) {
	accounts, err := parseAccountList(accountListHTML)
	require.NoError(t, err)

	want := []AccountSummary{
		{AccountNumber: 10234, ServiceType: "Energía", Address: "SAN MARTIN 450", ConnectionStatus: "CONECTADO"},
		{AccountNumber: 20987, ServiceType: "Agua", Address: "BELGRANO 1200 DTO 2", ConnectionStatus: "SUSPENDIDO"},
	}
	if diff := cmp.Diff(want, accounts); diff != "" {
		t.Fatalf("account list mismatch (-want +got):\n%s", diff)
	}
}

func TestParseAccountListBlankOptionalCells(t *testing.T) {
	html := `<table>
	  <tr><td>555</td><td></td><td></td><td>CONECTADO</td></tr>
	</table>`

	accounts, err := parseAccountList(html)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.Equal(t, 555, accounts[0].AccountNumber)
	require.Equal(t, "", accounts[0].ServiceType)
	require.Equal(t, "", accounts[0].Address)
}

func TestParseAccountListEmpty(t *testing.T) {
	accounts, err := parseAccountList(`<html><body><p>Cuentas de la persona</p></body></html>`)
	require.NoError(t, err)
	require.NotNil(t, accounts)
	require.Empty(t, accounts)
}

func TestParseAccountListTextFallback(t *testing.T) {
	// no grid markup at all, just rendered text
	html := `<html><body><div>
	Cuentas de la persona
	10234 Energía SAN MARTIN 450 CONECTADO
	20987 Gas BELGRANO 1200 DESCONECTADO
	</div></body></html>`

	accounts, err := parseAccountList(html)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	require.Equal(t, "Gas", accounts[1].ServiceType)
	require.Equal(t, "BELGRANO 1200", accounts[1].Address)
	require.Equal(t, "DESCONECTADO", accounts[1].ConnectionStatus)
}

func TestParseAccountListSkipsDuplicates(t *testing.T) {
	html := `<table>
	  <tr><td>10234</td><td>Energía</td><td>SAN MARTIN 450</td><td>CONECTADO</td></tr>
	  <tr><td>10234</td><td>Energía</td><td>SAN MARTIN 450</td><td>CONECTADO</td></tr>
	</table>`

	accounts, err := parseAccountList(html)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
}
