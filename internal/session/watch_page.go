package session

import (
	"html/template"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/funnelcast/funnelcast/internal/httputil"
)

var watchPageTemplate = template.Must(template.New("watch").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}} — FunnelCast</title>
    <meta property="og:title" content="{{.Title}}">
    <meta property="og:type" content="video.other">
    <meta property="og:site_name" content="FunnelCast">
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            background: #0a1628;
            color: #ffffff;
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            min-height: 100vh;
            display: flex;
            flex-direction: column;
            align-items: center;
        }
        .container { max-width: 960px; width: 100%; padding: 2rem 1rem; }
        .stage { position: relative; width: 100%; }
        video { width: 100%; border-radius: 8px; background: #000; }
        .overlay {
            position: absolute;
            cursor: pointer;
            border: 0;
            background: transparent;
            padding: 0;
        }
        .overlay img { width: 100%; height: 100%; display: block; }
        .overlay.labeled {
            background: rgba(0, 182, 122, 0.9);
            color: #fff;
            padding: 0.375rem 0.75rem;
            border-radius: 6px;
            font-size: 0.875rem;
        }
        .controls { margin-top: 0.75rem; display: flex; gap: 0.5rem; }
        .controls button {
            padding: 0.5rem 1rem;
            border: 0;
            border-radius: 6px;
            background: #1b2f52;
            color: #fff;
            font-size: 0.875rem;
            cursor: pointer;
        }
        .controls img { height: 2rem; display: block; }
        .panel {
            position: absolute;
            inset: 0;
            display: none;
            align-items: center;
            justify-content: center;
            background: rgba(10, 22, 40, 0.92);
            border-radius: 8px;
        }
        .panel.open { display: flex; }
        .panel .card {
            background: #122240;
            border-radius: 8px;
            padding: 1.5rem;
            max-width: 420px;
            width: 90%;
        }
        .card h2 { font-size: 1.125rem; margin-bottom: 1rem; }
        .card button {
            display: block;
            width: 100%;
            margin-top: 0.5rem;
            padding: 0.625rem;
            border: 0;
            border-radius: 6px;
            background: #00b67a;
            color: #fff;
            font-size: 0.9375rem;
            cursor: pointer;
        }
        .card input, .card select, .card textarea {
            width: 100%;
            margin-top: 0.5rem;
            padding: 0.5rem;
            border-radius: 6px;
            border: 1px solid #2b3f63;
            background: #0a1628;
            color: #fff;
        }
        .card .error { color: #f87171; font-size: 0.8125rem; margin-top: 0.25rem; }
        h1 { margin-top: 1rem; font-size: 1.5rem; font-weight: 600; }
        .branding { margin-top: 2rem; font-size: 0.75rem; color: #64748b; }
        .branding a { color: #00b67a; text-decoration: none; }
    </style>
</head>
<body>
    <div class="container">
        <div class="stage">
            <video id="player" playsinline></video>
            <div id="overlays"></div>
            <div id="panel" class="panel"><div class="card" id="panel-card"></div></div>
        </div>
        <div id="controls" class="controls"></div>
        <h1>{{.Title}}</h1>
        <p class="branding">Shared via <a href="https://funnelcast.dev">FunnelCast</a> — interactive video funnels</p>
    </div>
    <script nonce="{{.Nonce}}">
    (function () {
        var shareToken = {{.ShareToken}};
        var player = document.getElementById('player');
        var token = null;
        var saved = false;
        var hiddenTimer = null;

        function api(path, body, headers) {
            var h = Object.assign({'Content-Type': 'application/json'}, headers || {});
            if (token) h['Authorization'] = 'Bearer ' + token;
            return fetch(path, {method: 'POST', headers: h, body: JSON.stringify(body)})
                .then(function (r) { return r.json(); });
        }

        function reportPayload(trigger) {
            return JSON.stringify({token: token, trigger: trigger});
        }

        // Teardown delivery chain: beacon, then keepalive fetch, then a
        // synchronous XHR as the last resort that holds the page open.
        function flush(trigger) {
            if (saved || !token) return;
            saved = true;
            var payload = reportPayload(trigger);
            if (navigator.sendBeacon &&
                navigator.sendBeacon('/api/play/report', new Blob([payload], {type: 'application/json'}))) {
                return;
            }
            try {
                fetch('/api/play/report', {
                    method: 'POST',
                    headers: {'Content-Type': 'application/json'},
                    body: payload,
                    keepalive: true
                });
                return;
            } catch (e) { /* fall through */ }
            try {
                var xhr = new XMLHttpRequest();
                xhr.open('POST', '/api/play/report', false);
                xhr.setRequestHeader('Content-Type', 'application/json');
                xhr.send(payload);
            } catch (e) { /* report lost; never block the viewer */ }
        }

        window.addEventListener('beforeunload', function () { flush('beforeunload'); });
        window.addEventListener('pagehide', function () { flush('pagehide'); });
        document.addEventListener('visibilitychange', function () {
            if (!token) return;
            if (document.visibilityState === 'hidden') {
                hiddenTimer = setTimeout(function () {
                    navigator.sendBeacon && navigator.sendBeacon('/api/play/report',
                        new Blob([reportPayload('visibility_hidden')], {type: 'application/json'}));
                }, 100);
            } else {
                if (hiddenTimer) { clearTimeout(hiddenTimer); hiddenTimer = null; }
                api('/api/play/visible', {token: token});
            }
        });

        var lastState = null;

        function render(state, extra) {
            lastState = state;
            renderOverlays(state);
            renderControls(state);
            if (extra && extra.openUrl) window.open(extra.openUrl, '_blank');
            if (extra && extra.form) renderForm(extra.form);
            if (state.questionId) renderQuestion(state.questionId);
        }

        // Mirrors the server's aspect-fit: scale to fit inside the frame,
        // never past native size, centered on the loose axis. Percent
        // positions land inside the fitted rect, authored image sizes scale
        // with it.
        function fitRect(nativeW, nativeH, containerW, containerH) {
            if (!nativeW || !nativeH || !containerW || !containerH) {
                return {width: containerW, height: containerH, left: 0, top: 0, scale: 1};
            }
            var scale = Math.min(containerW / nativeW, containerH / nativeH, 1);
            var w = nativeW * scale;
            var h = nativeH * scale;
            return {
                width: w,
                height: h,
                left: (containerW - w) / 2,
                top: (containerH - h) / 2,
                scale: scale
            };
        }

        function renderOverlays(state) {
            var overlays = document.getElementById('overlays');
            overlays.innerHTML = '';
            var v = videoById(state.videoId);
            if (!v || !state.activeOverlayIds || !state.activeOverlayIds.length) return;
            var rect = fitRect(player.videoWidth, player.videoHeight,
                player.clientWidth, player.clientHeight);
            (v.links || []).forEach(function (link) {
                if (state.activeOverlayIds.indexOf(link.id) === -1) return;
                var btn = document.createElement('button');
                btn.className = 'overlay';
                btn.style.left = (rect.left + link.positionX / 100 * rect.width) + 'px';
                btn.style.top = (rect.top + link.positionY / 100 * rect.height) + 'px';
                if (link.normalImage) {
                    btn.style.width = (link.normalImage.width * rect.scale) + 'px';
                    btn.style.height = (link.normalImage.height * rect.scale) + 'px';
                    var img = document.createElement('img');
                    img.src = link.normalImage.url;
                    img.alt = link.label;
                    if (link.hoverImage) {
                        btn.addEventListener('mouseenter', function () { img.src = link.hoverImage.url; });
                        btn.addEventListener('mouseleave', function () { img.src = link.normalImage.url; });
                    }
                    btn.appendChild(img);
                } else {
                    btn.className += ' labeled';
                    btn.textContent = link.label;
                }
                btn.addEventListener('click', function () { send('link', {linkId: link.id}); });
                overlays.appendChild(btn);
            });
        }

        function renderControls(state) {
            var controls = document.getElementById('controls');
            controls.innerHTML = '';
            if (bundle && bundle.navigationVideo) {
                var inNav = state.videoId === bundle.navigationVideo.id;
                var nav = document.createElement('button');
                if (inNav) {
                    nav.textContent = 'Resume';
                } else if (bundle.navigationButtonImageUrl) {
                    var img = document.createElement('img');
                    img.src = bundle.navigationButtonImageUrl;
                    img.alt = bundle.navigationVideo.title;
                    nav.appendChild(img);
                } else {
                    nav.textContent = bundle.navigationVideo.title;
                }
                nav.addEventListener('click', function () {
                    send(inNav ? 'nav_exit' : 'nav_open');
                });
                controls.appendChild(nav);
            }
            if (state.canGoBack) {
                var back = document.createElement('button');
                back.textContent = 'Back';
                back.addEventListener('click', function () { send('back'); });
                controls.appendChild(back);
            }
            if (state.mode === 'frozen_at_end' || state.terminal) {
                var again = document.createElement('button');
                again.textContent = 'Watch again';
                again.addEventListener('click', function () { send('restart'); });
                controls.appendChild(again);
            }
        }

        window.addEventListener('resize', function () {
            if (lastState) renderOverlays(lastState);
        });

        function renderForm(form) {
            var card = document.getElementById('panel-card');
            card.innerHTML = '';
            var title = document.createElement('h2');
            title.textContent = form.title;
            card.appendChild(title);
            var el = document.createElement('form');
            (form.fields || []).forEach(function (f) {
                if (f.type === 'checkbox' || f.type === 'radio') {
                    var group = document.createElement('div');
                    var caption = document.createElement('p');
                    caption.textContent = f.label;
                    group.appendChild(caption);
                    (f.options || []).forEach(function (o) {
                        var lbl = document.createElement('label');
                        var choice = document.createElement('input');
                        choice.type = f.type;
                        choice.name = f.id;
                        choice.value = o.id;
                        lbl.appendChild(choice);
                        lbl.appendChild(document.createTextNode(' ' + o.label));
                        group.appendChild(lbl);
                    });
                    el.appendChild(group);
                    return;
                }
                var input;
                if (f.type === 'dropdown') {
                    input = document.createElement('select');
                    (f.options || []).forEach(function (o) {
                        var opt = document.createElement('option');
                        opt.value = o.id;
                        opt.textContent = o.label;
                        input.appendChild(opt);
                    });
                } else if (f.type === 'textarea') {
                    input = document.createElement('textarea');
                } else {
                    input = document.createElement('input');
                    input.type = f.type === 'email' || f.type === 'number' ? f.type : 'text';
                }
                input.name = f.id;
                input.placeholder = f.label;
                el.appendChild(input);
            });
            var submit = document.createElement('button');
            submit.type = 'submit';
            submit.textContent = 'Submit';
            el.appendChild(submit);
            el.addEventListener('submit', function (ev) {
                ev.preventDefault();
                var values = {};
                new FormData(el).forEach(function (v, k) {
                    (values[k] = values[k] || []).push(v);
                });
                api('/api/play/form', {action: 'submit', values: values}).then(function (resp) {
                    if (resp.fieldErrors && resp.fieldErrors.length) return;
                    document.getElementById('panel').classList.remove('open');
                    sync(resp.state);
                });
            });
            card.appendChild(el);
            document.getElementById('panel').classList.add('open');
        }

        var bundle = null;

        function renderQuestion(questionId) {
            var card = document.getElementById('panel-card');
            card.innerHTML = '';
            var q = findQuestion(questionId);
            if (!q) return;
            var title = document.createElement('h2');
            title.textContent = q.text;
            card.appendChild(title);
            (q.answers || []).forEach(function (a) {
                var btn = document.createElement('button');
                btn.textContent = a.label;
                btn.addEventListener('click', function () {
                    api('/api/play/event', {type: 'answer', questionId: q.id, answerId: a.id})
                        .then(function (resp) {
                            document.getElementById('panel').classList.remove('open');
                            sync(resp.state, resp);
                        });
                });
                card.appendChild(btn);
            });
            document.getElementById('panel').classList.add('open');
        }

        function findQuestion(id) {
            if (!bundle) return null;
            var vids = (bundle.videos || []).concat(bundle.navigationVideo ? [bundle.navigationVideo] : []);
            for (var i = 0; i < vids.length; i++) {
                for (var j = 0; j < (vids[i].questions || []).length; j++) {
                    if (vids[i].questions[j].id === id) return vids[i].questions[j];
                }
            }
            return null;
        }

        function videoById(id) {
            if (!bundle) return null;
            var vids = (bundle.videos || []).concat(bundle.navigationVideo ? [bundle.navigationVideo] : []);
            for (var i = 0; i < vids.length; i++) {
                if (vids[i].id === id) return vids[i];
            }
            return null;
        }

        var currentVideoId = null;

        function sync(state, extra) {
            if (state.videoId && state.videoId !== currentVideoId) {
                currentVideoId = state.videoId;
                var v = videoById(state.videoId);
                if (v) {
                    player.src = v.url;
                    if (state.mode === 'playing') player.play().catch(function () {});
                }
            }
            render(state, extra);
        }

        function send(type, fields) {
            return api('/api/play/event', Object.assign({type: type}, fields || {}))
                .then(function (resp) { sync(resp.state, resp); });
        }

        player.addEventListener('ended', function () { send('ended'); });
        player.addEventListener('loadedmetadata', function () {
            if (lastState) renderOverlays(lastState);
        });
        player.addEventListener('play', function () { send('play'); });
        player.addEventListener('pause', function () {
            if (!player.ended) send('pause');
        });
        player.addEventListener('timeupdate', function () {
            send('timeupdate', {time: player.currentTime});
        });

        fetch('/api/watch/' + shareToken)
            .then(function (r) { return r.json(); })
            .then(function (b) {
                bundle = b;
                if (b.passwordRequired) return; // gate UI handled separately
                return api('/api/watch/' + shareToken + '/start', {autoplayGranted: true})
                    .then(function (resp) {
                        token = resp.token;
                        sync(resp.state);
                        player.play().catch(function () {
                            player.muted = true;
                            player.play().catch(function () {});
                        });
                    });
            });
    })();
    </script>
</body>
</html>`))

type watchPageData struct {
	Title      string
	ShareToken string
	Nonce      string
}

// WatchPage renders the embedded viewer shell. All content loads through the
// JSON API so the page itself stays cacheable and gate-safe.
func (h *Handler) WatchPage(w http.ResponseWriter, r *http.Request) {
	shareToken := chi.URLParam(r, "shareToken")

	var title string
	err := h.db.QueryRow(r.Context(),
		`SELECT title FROM sessions WHERE share_token = $1 AND status = 'ready'`,
		shareToken,
	).Scan(&title)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := watchPageTemplate.Execute(w, watchPageData{
		Title:      title,
		ShareToken: shareToken,
		Nonce:      httputil.NonceFromContext(r.Context()),
	}); err != nil {
		log.Printf("failed to render watch page: %v", err)
	}
}
