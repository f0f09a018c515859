package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"trade-gateway/src/models"
	"trade-gateway/src/storage"
)

// -----------------------------------------------------------------------------
// login / validate_user
// -----------------------------------------------------------------------------

func (s *Session) onLogin(action string, frame []interface{}) error {
	name, err := getString(at(frame, 1))
	if err != nil {
		return err
	}
	rawPassword, err := getString(at(frame, 2))
	if err != nil {
		return err
	}
	password := Sha1Hex(rawPassword)
	user := s.deps.Accounts.GetUser(name)

	var state string
	switch {
	case user == nil:
		state = "unknown user"
	case password != user.Password:
		state = "wrong password"
	case user.Disabled:
		state = "disabled"
	default:
		state = "ok"
	}

	if action == "validate_user" {
		echoToken, err := getInt(at(frame, 3))
		if err != nil {
			return err
		}
		var id int64
		if state == "ok" {
			id = user.ID
		}
		s.sendJSON("user_validation", id, echoToken)
		return nil
	}

	if state != "ok" {
		s.sendJSON("connection", state)
		return nil
	}

	token := s.deps.Tokens.Mint(user)
	s.sendJSON("connection", state, map[string]interface{}{
		"session":            s.deps.Positions.Session(),
		"userId":             user.ID,
		"startTime":          s.deps.StartTime,
		"sessionToken":       token,
		"securitiesCheckSum": s.deps.Securities.CheckSum(),
	})

	// First successful login on a stateful transport adopts the user and
	// fans out the session capabilities.
	if s.user == nil && !s.transport.Stateless() {
		s.user = user
		s.publishing = true
		s.sendSubAccounts(user)
		if user.Admin {
			s.sendUserSubAccounts()
		}
		for _, ba := range s.deps.Accounts.BrokerAccounts() {
			s.sendJSON("broker_account", ba.ID, ba.Name)
		}
		s.sendAlgoDefs()
		s.sendAlgoFiles()
	}
	return nil
}

func (s *Session) sendSubAccounts(user *models.MUser) {
	for _, acc := range sortedSubAccounts(user.SubAccounts) {
		s.sendJSON("sub_account", acc.ID, acc.Name)
	}
}

func (s *Session) sendUserSubAccounts() {
	for _, u := range s.deps.Accounts.Users() {
		for _, acc := range sortedSubAccounts(u.SubAccounts) {
			s.sendJSON("user_sub_account", u.ID, acc.ID, acc.Name)
		}
	}
}

func (s *Session) sendAlgoDefs() {
	for _, def := range s.deps.Algos.AlgoDefs() {
		frame := []interface{}{"algo_def", def.Name()}
		for _, p := range def.ParamDefs() {
			param := []interface{}{p.Name}
			param = append(param, Jsonify(p.Default)...)
			param = append(param, p.Required, p.Min, p.Max, p.Precision)
			frame = append(frame, param)
		}
		s.sendJSON(frame...)
	}
}

// sendAlgoFiles lists the visible strategy sources; dot and underscore
// prefixed names stay hidden.
func (s *Session) sendAlgoFiles() {
	entries, err := os.ReadDir(s.deps.AlgoRoot)
	if err != nil {
		return
	}
	var files []interface{}
	for _, entry := range entries {
		fn := entry.Name()
		if strings.HasPrefix(fn, "_") || strings.HasPrefix(fn, ".") {
			continue
		}
		files = append(files, fn)
	}
	if len(files) > 0 {
		s.sendJSON("algoFiles", files)
	}
}

func sortedSubAccounts(m map[int64]*models.MSubAccount) []*models.MSubAccount {
	accs := make([]*models.MSubAccount, 0, len(m))
	for _, acc := range m {
		accs = append(accs, acc)
	}
	sort.Slice(accs, func(i, j int) bool { return accs[i].ID < accs[j].ID })
	return accs
}

// -----------------------------------------------------------------------------
// bod
// -----------------------------------------------------------------------------

func (s *Session) onBod() error {
	bods := s.deps.Positions.Bods()
	keys := make([]models.AcctSec, 0, len(bods))
	for key := range bods {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Acct != keys[j].Acct {
			return keys[i].Acct < keys[j].Acct
		}
		return keys[i].Sec < keys[j].Sec
	})
	for _, key := range keys {
		if !s.user.Admin && !s.user.HasSubAccount(key.Acct) {
			continue
		}
		pos := bods[key]
		s.sendJSON("bod", key.Acct, key.Sec, pos.Qty, pos.AvgPx, pos.RealizedPnl,
			pos.BrokerAccountID, pos.Tm)
	}
	return nil
}

// -----------------------------------------------------------------------------
// reconnect
// -----------------------------------------------------------------------------

func (s *Session) onReconnect(frame []interface{}) error {
	name, err := getString(at(frame, 1))
	if err != nil {
		return err
	}
	if m := s.deps.MarketData.GetAdapter(name); m != nil {
		m.Reconnect()
		return nil
	}
	if e := s.deps.Exchange.GetAdapter(name); e != nil {
		e.Reconnect()
	}
	return nil
}

// -----------------------------------------------------------------------------
// securities
// -----------------------------------------------------------------------------

func (s *Session) onSecurities() error {
	s.logger.Debug("%s: securities requested", s.transport.RemoteAddress())
	var batch []interface{}
	for _, sec := range s.deps.Securities.Securities() {
		var frame []interface{}
		if s.user.Admin {
			frame = []interface{}{
				"security", sec.ID, sec.Symbol, sec.Exchange, sec.Type,
				sec.Multiplier, sec.ClosePrice, sec.Rate, sec.Currency,
				sec.Adv20, sec.MarketCap,
				fmt.Sprintf("%d", sec.Sector),
				fmt.Sprintf("%d", sec.IndustryGroup),
				fmt.Sprintf("%d", sec.Industry),
				fmt.Sprintf("%d", sec.SubIndustry),
				sec.LocalSymbol, sec.Bbgid, sec.Cusip, sec.Sedol, sec.Isin,
			}
		} else {
			frame = []interface{}{
				"security", sec.ID, sec.Symbol, sec.Exchange, sec.Type,
				sec.LotSize, sec.Multiplier,
			}
		}
		if s.transport.Stateless() {
			batch = append(batch, frame)
		} else {
			s.sendJSON(frame...)
		}
	}
	if s.transport.Stateless() {
		s.sendJSON(batch...)
		return nil
	}
	s.sendJSON("securities", "complete")
	return nil
}

// -----------------------------------------------------------------------------
// position
// -----------------------------------------------------------------------------

func (s *Session) onPosition(frame []interface{}, msg string) error {
	securityID, err := getInt(at(frame, 1))
	if err != nil {
		return err
	}
	sec := s.deps.Securities.Get(securityID)
	if sec == nil {
		s.sendJSON("error", "position", "security id",
			fmt.Sprintf("Invalid security id: %d", securityID))
		return nil
	}
	accName, err := getString(at(frame, 2))
	if err != nil {
		return err
	}
	acc := s.deps.Accounts.GetSubAccountByName(accName)
	if acc == nil {
		s.sendJSON("error", "position", "account name", "Invalid account name: "+accName)
		return nil
	}

	var pos models.MPosition
	broker := false
	if len(frame) > 3 {
		if broker, err = getBool(frame[3]); err != nil {
			return err
		}
	}
	if broker {
		brokerAcc := s.deps.Accounts.GetBroker(acc, sec)
		if brokerAcc == nil {
			s.sendJSON("error", "position", "account name",
				"Can not find broker for this account and security pair")
			return nil
		}
		pos = s.deps.Positions.GetBroker(brokerAcc, sec)
	} else {
		pos = s.deps.Positions.Get(acc, sec)
	}

	out := []interface{}{"position", map[string]interface{}{
		"qty":                        pos.Qty,
		"avg_px":                     pos.AvgPx,
		"unrealized_pnl":             pos.UnrealizedPnl,
		"realized_pnl":               pos.RealizedPnl,
		"total_bought_qty":           pos.TotalBoughtQty,
		"total_sold_qty":             pos.TotalSoldQty,
		"total_outstanding_buy_qty":  pos.TotalOutstandingBuy,
		"total_outstanding_sell_qty": pos.TotalOutstandingSell,
	}}
	s.logger.Debug("%s: position %v", s.transport.RemoteAddress(), out)
	// the reply echoes the request frame; clients pair it by shape
	s.sendJSON(frame...)
	return nil
}

// -----------------------------------------------------------------------------
// offline replay
// -----------------------------------------------------------------------------

func (s *Session) onOffline(frame []interface{}) error {
	if len(frame) > 2 {
		seqAlgo, err := getInt(frame[2])
		if err != nil {
			return err
		}
		s.logger.Debug("%s: offline algos requested: %d", s.transport.RemoteAddress(), seqAlgo)
		s.deps.Algos.LoadStore(seqAlgo, s)
		s.sendJSON("offline_algos", "complete")
	}
	seqConfirmation, err := getInt(at(frame, 1))
	if err != nil {
		return err
	}
	s.logger.Debug("%s: offline confirmations requested: %d", s.transport.RemoteAddress(), seqConfirmation)
	s.deps.OrderBook.LoadStore(seqConfirmation, s)
	s.sendJSON("offline_orders", "complete")
	s.sendJSON("offline", "complete")
	return nil
}

// -----------------------------------------------------------------------------
// shutdown
// -----------------------------------------------------------------------------

func (s *Session) onShutdown(frame []interface{}) error {
	if !s.user.Admin {
		return nil
	}
	seconds := 3.0
	interval := 1.0
	if len(frame) > 1 {
		n, err := getNum(frame[1])
		if err != nil {
			return err
		}
		if n > seconds {
			seconds = n
		}
	}
	if len(frame) > 2 {
		n, err := getNum(frame[2])
		if err != nil {
			return err
		}
		if n > interval && n < seconds {
			interval = n
		}
	}
	if s.deps.Server != nil {
		s.deps.Server.StopAccepting()
	}
	s.deps.Algos.StopAll()
	s.logger.Info("Shutting down")
	for seconds > 0 {
		s.logger.Info("%g", seconds)
		seconds -= interval
		s.deps.sleep(time.Duration(interval * float64(time.Second)))
		s.deps.OrderBook.CancelAll()
	}
	s.deps.sleep(time.Second)
	s.deps.exit(0)
	return nil
}

// -----------------------------------------------------------------------------
// cancel
// -----------------------------------------------------------------------------

func (s *Session) onCancel(frame []interface{}, msg string) error {
	id, err := getInt(at(frame, 1))
	if err != nil {
		return err
	}
	ord := s.deps.OrderBook.Get(id)
	if ord == nil {
		s.logger.Debug("%s: invalid order id: %s", s.transport.RemoteAddress(), msg)
		s.sendJSON("error", "cancel", "order id", fmt.Sprintf("Invalid order id: %d", id))
		return nil
	}
	return s.deps.Exchange.Cancel(ord)
}

// -----------------------------------------------------------------------------
// order placement
// -----------------------------------------------------------------------------

func (s *Session) onOrder(frame []interface{}, msg string) error {
	securityID, err := getInt(at(frame, 1))
	if err != nil {
		return err
	}
	subAccount, err := getString(at(frame, 2))
	if err != nil {
		return err
	}
	acc := s.deps.Accounts.GetSubAccountByName(subAccount)
	if acc == nil {
		s.logger.Debug("%s: invalid sub_account: %s", s.transport.RemoteAddress(), msg)
		s.sendJSON("error", "order", "sub_account", "Invalid sub_account: "+subAccount)
		return nil
	}
	sideStr, err := getString(at(frame, 3))
	if err != nil {
		return err
	}
	typeStr, err := getString(at(frame, 4))
	if err != nil {
		return err
	}
	tifStr, err := getString(at(frame, 5))
	if err != nil {
		return err
	}
	qty, err := getNum(at(frame, 6))
	if err != nil {
		return err
	}
	px, err := getNum(at(frame, 7))
	if err != nil {
		return err
	}
	stopPrice, err := getNum(at(frame, 8))
	if err != nil {
		return err
	}

	var c models.MContract
	c.Qty = qty
	c.Price = px
	c.StopPrice = stopPrice
	c.Sec = s.deps.Securities.Get(securityID)
	if c.Sec == nil {
		s.logger.Debug("%s: invalid security id: %s", s.transport.RemoteAddress(), msg)
		s.sendJSON("error", "order", "security id",
			fmt.Sprintf("Invalid security id: %d", securityID))
		return nil
	}
	c.SubAccount = acc
	side, ok := models.ParseOrderSide(sideStr)
	if !ok {
		s.logger.Debug("%s: invalid side: %s", s.transport.RemoteAddress(), msg)
		s.sendJSON("error", "order", "side", "Invalid side: "+sideStr)
		return nil
	}
	c.Side = side
	c.Type = models.ParseOrderType(typeStr)
	if c.StopPrice <= 0 && (c.Type == models.TypeStop || c.Type == models.TypeStopLimit) {
		s.logger.Debug("%s: missing stop price: %s", s.transport.RemoteAddress(), msg)
		s.sendJSON("error", "order", "stop price", "Miss stop price for stop order")
		return nil
	}
	c.Tif = models.ParseTimeInForce(tifStr)

	ord := &models.MOrder{MContract: c, User: s.user}
	return s.deps.Exchange.Place(ord)
}

// -----------------------------------------------------------------------------
// algo control
// -----------------------------------------------------------------------------

func (s *Session) onAlgo(frame []interface{}, msg string) error {
	action, err := getString(at(frame, 1))
	if err != nil {
		return err
	}
	switch action {
	case "cancel":
		if token, ok := at(frame, 2).(string); ok {
			s.deps.Algos.StopToken(token)
			return nil
		}
		id, err := getInt(at(frame, 2))
		if err != nil {
			return err
		}
		s.deps.Algos.StopID(id)
		return nil

	case "modify":
		params, err := ParseParams(at(frame, 3), s.ref())
		if err != nil {
			return err
		}
		if token, ok := at(frame, 2).(string); ok {
			s.deps.Algos.ModifyToken(token, params)
			return nil
		}
		id, err := getInt(at(frame, 2))
		if err != nil {
			return err
		}
		s.deps.Algos.ModifyID(id, params)
		return nil

	case "new", "test":
		algoName, err := getString(at(frame, 2))
		if err != nil {
			return err
		}
		token, err := getString(at(frame, 3))
		if err != nil {
			return err
		}
		if s.deps.Algos.GetByToken(token) != nil {
			s.logger.Debug("%s: duplicate algo token: %s", s.transport.RemoteAddress(), msg)
			s.sendJSON("error", "algo", "duplicate token", token)
			return nil
		}
		if err := s.spawnAlgo(action, algoName, token, at(frame, 4)); err != nil {
			s.logger.Debug("%s: %v, %s", s.transport.RemoteAddress(), err, msg)
			s.sendJSON("error", "algo", "invalid params", token, err.Error())
		}
		return nil
	}
	s.sendJSON("error", "algo", "invalid action", action)
	return nil
}

func (s *Session) spawnAlgo(action, algoName, token string, rawParams interface{}) error {
	var params models.MParamMap
	if action == "new" {
		var err error
		params, err = ParseParams(rawParams, s.ref())
		if err != nil {
			return err
		}
		for _, pv := range params {
			if pv.Kind != models.ParamSecurity {
				continue
			}
			acc := pv.Security.Acc
			if !s.user.HasSubAccount(acc.ID) {
				return fmt.Errorf("No permission to trade with account: %s", acc.Name)
			}
		}
	} else if token != "" {
		// test output frames route back only to the originating session
		s.testTokens[token] = struct{}{}
	}
	raw, _ := json.Marshal(rawParams)
	if !s.deps.Algos.Spawn(params, algoName, s.user, string(raw), token) && params != nil {
		return fmt.Errorf("Unknown algo name: %s", algoName)
	}
	return nil
}

func (s *Session) ref() refData {
	return refData{securities: s.deps.Securities, accounts: s.deps.Accounts}
}

// -----------------------------------------------------------------------------
// pnl history
// -----------------------------------------------------------------------------

func (s *Session) onPnl(frame []interface{}) error {
	var tm0 int64
	if len(frame) >= 2 {
		var err error
		if tm0, err = getInt(frame[1]); err != nil {
			return err
		}
	}
	if floor := time.Now().Unix() - 24*3600; floor > tm0 {
		tm0 = floor
	}
	pnls := s.deps.Positions.Pnls()
	ids := make([]int64, 0, len(pnls))
	for id := range pnls {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if !s.user.HasSubAccount(id) {
			continue
		}
		records := storage.ReadPnlLog(s.deps.StoreRoot, id, tm0)
		if len(records) == 0 {
			continue
		}
		rows := make([]interface{}, 0, len(records))
		for _, rec := range records {
			rows = append(rows, []interface{}{rec.Tm, rec.Realized, rec.Unrealized})
		}
		s.sendJSON("Pnl", id, rows)
	}
	s.subPnl = true
	return nil
}

// -----------------------------------------------------------------------------
// sub / unsub
// -----------------------------------------------------------------------------

func (s *Session) onSub(frame []interface{}) error {
	out := []interface{}{"md"}
	for i := 1; i < len(frame); i++ {
		id, err := getInt(frame[i])
		if err != nil {
			return err
		}
		entry := s.subs[id]
		if entry == nil {
			entry = &subEntry{}
			s.subs[id] = entry
		}
		if sec := s.deps.Securities.Get(id); sec != nil {
			md := s.deps.MarketData.GetSnapshot(id)
			if delta := diffMarketData(md, entry.last); delta != nil {
				out = append(out, []interface{}{id, delta})
			}
			entry.last = md
			entry.refs++
		}
	}
	if len(out) > 1 {
		s.sendJSON(out...)
	}
	return nil
}

// onUnsub decrements refcounts; an unknown id aborts the remainder of the
// frame, which mirrors the established client contract.
func (s *Session) onUnsub(frame []interface{}) error {
	for i := 1; i < len(frame); i++ {
		id, err := getInt(frame[i])
		if err != nil {
			return err
		}
		entry, ok := s.subs[id]
		if !ok {
			return nil
		}
		entry.refs--
		if entry.refs <= 0 {
			delete(s.subs, id)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// strategy source files
// -----------------------------------------------------------------------------

func (s *Session) onAlgoFile(frame []interface{}) error {
	fn, err := getString(at(frame, 1))
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Join(s.deps.AlgoRoot, fn))
	if err != nil {
		s.sendJSON("algoFile", fn, nil, "Not found")
		return nil
	}
	s.sendJSON("algoFile", fn, string(data))
	return nil
}

func (s *Session) onDeleteAlgoFile(frame []interface{}) error {
	fn, err := getString(at(frame, 1))
	if err != nil {
		return err
	}
	out := []interface{}{"deleteAlgoFile", fn}
	if err := os.Remove(filepath.Join(s.deps.AlgoRoot, fn)); err != nil && !os.IsNotExist(err) {
		out = append(out, err.Error())
	}
	s.sendJSON(out...)
	return nil
}

func (s *Session) onSaveAlgoFile(frame []interface{}) error {
	fn, err := getString(at(frame, 1))
	if err != nil {
		return err
	}
	text, err := getString(at(frame, 2))
	if err != nil {
		return err
	}
	out := []interface{}{"saveAlgoFile", fn}
	if err := os.WriteFile(filepath.Join(s.deps.AlgoRoot, fn), []byte(text), 0644); err != nil {
		out = append(out, "Can not write")
	}
	s.sendJSON(out...)
	return nil
}
