// Package control exposes the block-list over HTTP for out-of-band updates.
package control

import (
	"errors"
	"net/http"
	"net/netip"
	"strconv"

	"github.com/labstack/echo/v4"

	"firestige.xyz/dnsreflect/internal/blocklist"
	"firestige.xyz/dnsreflect/internal/log"
	"firestige.xyz/dnsreflect/internal/metrics"
)

// Store is the view of the block-list the API reads from.
type Store interface {
	blocklist.Reader
	Addresses() []netip.Addr
	Ports() []uint16
	Len() (addrs, ports int)
	Capacity() int
}

type API struct {
	store  Store
	writer blocklist.Writer
	logger log.Logger
}

type listing struct {
	Addresses []string `json:"addresses"`
	Ports     []uint16 `json:"ports"`
	Capacity  int      `json:"capacity"`
}

type addressState struct {
	Address string `json:"address"`
	Blocked bool   `json:"blocked"`
}

type portState struct {
	Port    uint16 `json:"port"`
	Blocked bool   `json:"blocked"`
}

// Register mounts the block-list routes on e. Reads go to store, writes go
// through w so that decorators such as the journal see them.
func Register(e *echo.Echo, store Store, w blocklist.Writer) *API {
	a := &API{store: store, writer: w, logger: log.GetLogger().WithField("component", "control")}
	g := e.Group("/blocklist")
	g.GET("", a.list)
	g.GET("/addresses/:addr", a.getAddress)
	g.PUT("/addresses/:addr", a.putAddress)
	g.DELETE("/addresses/:addr", a.deleteAddress)
	g.GET("/ports/:port", a.getPort)
	g.PUT("/ports/:port", a.putPort)
	g.DELETE("/ports/:port", a.deletePort)
	return a
}

func (a *API) list(c echo.Context) error {
	out := listing{
		Addresses: []string{},
		Ports:     a.store.Ports(),
		Capacity:  a.store.Capacity(),
	}
	for _, addr := range a.store.Addresses() {
		out.Addresses = append(out.Addresses, addr.String())
	}
	if out.Ports == nil {
		out.Ports = []uint16{}
	}
	return c.JSON(http.StatusOK, out)
}

func (a *API) getAddress(c echo.Context) error {
	addr, err := parseAddr(c.Param("addr"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err)
	}
	return c.JSON(http.StatusOK, addressState{Address: addr.String(), Blocked: a.store.IsBlockedAddress(addr)})
}

func (a *API) putAddress(c echo.Context) error {
	addr, err := parseAddr(c.Param("addr"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err)
	}
	if err := a.writer.InsertAddress(addr); err != nil {
		return a.writeFailed(c, err)
	}
	a.changed("insert", "address", addr.String())
	return c.JSON(http.StatusOK, addressState{Address: addr.String(), Blocked: true})
}

func (a *API) deleteAddress(c echo.Context) error {
	addr, err := parseAddr(c.Param("addr"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err)
	}
	if err := a.writer.RemoveAddress(addr); err != nil {
		return a.writeFailed(c, err)
	}
	a.changed("remove", "address", addr.String())
	return c.JSON(http.StatusOK, addressState{Address: addr.String(), Blocked: false})
}

func (a *API) getPort(c echo.Context) error {
	port, err := parsePort(c.Param("port"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err)
	}
	return c.JSON(http.StatusOK, portState{Port: port, Blocked: a.store.IsBlockedPort(port)})
}

func (a *API) putPort(c echo.Context) error {
	port, err := parsePort(c.Param("port"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err)
	}
	if err := a.writer.InsertPort(port); err != nil {
		return a.writeFailed(c, err)
	}
	a.changed("insert", "port", strconv.Itoa(int(port)))
	return c.JSON(http.StatusOK, portState{Port: port, Blocked: true})
}

func (a *API) deletePort(c echo.Context) error {
	port, err := parsePort(c.Param("port"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err)
	}
	if err := a.writer.RemovePort(port); err != nil {
		return a.writeFailed(c, err)
	}
	a.changed("remove", "port", strconv.Itoa(int(port)))
	return c.JSON(http.StatusOK, portState{Port: port, Blocked: false})
}

func (a *API) changed(op, table, key string) {
	addrs, ports := a.store.Len()
	metrics.ObserveBlocklist(addrs, ports)
	a.logger.WithFields(log.Fields{"op": op, "table": table, "key": key}).Info("blocklist updated")
}

func (a *API) writeFailed(c echo.Context, err error) error {
	switch {
	case errors.Is(err, blocklist.ErrTableFull):
		return errorJSON(c, http.StatusInsufficientStorage, err)
	case errors.Is(err, blocklist.ErrNotIPv4):
		return errorJSON(c, http.StatusBadRequest, err)
	default:
		a.logger.WithError(err).Error("blocklist write failed")
		return errorJSON(c, http.StatusInternalServerError, err)
	}
}

func errorJSON(c echo.Context, status int, err error) error {
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func parseAddr(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, err
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return netip.Addr{}, blocklist.ErrNotIPv4
	}
	return addr, nil
}

func parsePort(s string) (uint16, error) {
	p, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(p), nil
}
